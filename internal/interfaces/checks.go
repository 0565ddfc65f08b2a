package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/library/internal/audit"
	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/changefeed"
	"github.com/mrlokans/library/internal/database"
	"github.com/mrlokans/library/internal/database/books"
	"github.com/mrlokans/library/internal/http"
	"github.com/mrlokans/library/internal/livequery"
	"github.com/mrlokans/library/internal/scheduler"
	"github.com/mrlokans/library/internal/screens"
	"github.com/mrlokans/library/internal/session"
	"github.com/mrlokans/library/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// BookStore implementations
var _ screens.BookStore = (*books.Repository)(nil)
var _ livequery.Finder = (*books.Repository)(nil)

// Pinger implementations
var _ http.Pinger = (*database.Database)(nil)

// =============================================================================
// Live Data
// =============================================================================

// Change feed
var _ livequery.Source = (*changefeed.Feed)(nil)
var _ books.Publisher = (*changefeed.Feed)(nil)

// Auth state stream
var _ session.Source = (*auth.StateBroker)(nil)

// =============================================================================
// Accounts
// =============================================================================

// Accounts implementations
var _ screens.Accounts = (*auth.Service)(nil)

// ResetNotifier implementations
var _ auth.ResetNotifier = (*tasks.QueueNotifier)(nil)
var _ auth.ResetNotifier = (*tasks.DirectNotifier)(nil)

// Mailer implementations
var _ tasks.Mailer = tasks.LogMailer{}

// =============================================================================
// Audit and Maintenance
// =============================================================================

// Auditor implementations
var _ http.Auditor = (*audit.Service)(nil)

// Maintenance collaborators
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ tasks.ResetPurger = (*auth.Service)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
