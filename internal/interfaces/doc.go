// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - BookStore: Book reads and writes for one owner (internal/screens/deps.go)
//   - Finder: Query execution behind live queries (internal/livequery/subscription.go)
//   - Pinger: Database health (internal/http/config.go)
//
// ## Live Data Interfaces
//
//   - Source: Per-owner change subscriptions (internal/livequery/subscription.go)
//   - Publisher: Write notifications (internal/database/books/repository.go)
//   - session.Source: Auth state stream (internal/session/gate.go)
//
// ## Account Interfaces
//
//   - Accounts: Auth provider seen by screens (internal/screens/deps.go)
//   - ResetNotifier: Delivery of password reset links (internal/auth/reset.go)
//   - Mailer: Outgoing email (internal/tasks/reset_email.go)
//
// ## Audit and Maintenance Interfaces
//
//   - Auditor: Audit trail used by handlers (internal/http/config.go)
//   - AuditEventCleaner, ResetPurger: Maintenance targets (internal/tasks/)
//   - Enqueuer: Task queue used by the scheduler (internal/scheduler/maintenance.go)
//
// # Adding a New Screen
//
//  1. Define the screen's data type and embed *view[T] in internal/screens/
//
//     type ShelfData struct {
//         Books []entities.Book `json:"books"`
//     }
//
//     type Shelf struct {
//         *view[ShelfData]
//     }
//
//  2. Give it Mount/Unmount if it follows a live query, and expose Observe
//
//  3. Add a controller in internal/http/ and register its routes in router.go
//
// # Adding a New Reset Delivery Channel
//
// Implement ResetNotifier and wire it in entrypoint.go:
//
//	type SMSNotifier struct{ client *twilio.Client }
//
//	func (n *SMSNotifier) NotifyPasswordReset(ctx context.Context, notice auth.PasswordResetNotice) error
//
//	var _ auth.ResetNotifier = (*SMSNotifier)(nil)
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for the full list.
package interfaces
