package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/mrlokans/library/internal/audit"
	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/screens"
)

// Auditor records user actions. *audit.Service implements it.
type Auditor interface {
	LogAuth(actor audit.Actor, action string, success bool)
	LogBook(actor audit.Actor, action, bookID, title string, err error)
	LogDelete(actor audit.Actor, entityType, entityID, entityName string)
	LogProfile(actor audit.Actor, action, description string)
	GetEvents(ctx context.Context, userID uint, eventType entities.AuditEventType, limit, offset int) ([]entities.AuditEvent, int64, error)
}

// Pinger reports database health. *database.Database implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database Pinger
	Screens  screens.Deps
	Auditor  Auditor

	// Authentication
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthMiddleware *auth.Middleware
	RateLimiter    *auth.RateLimiter
	CSRFSecret     []byte
	SecureCookies  bool

	// StreamHeartbeat is the keep-alive interval on SSE streams.
	StreamHeartbeat time.Duration

	// Application info
	Version string

	Log *slog.Logger
}
