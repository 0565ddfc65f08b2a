// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── books/           # Owner-scoped book CRUD and query execution
//	├── users/           # Accounts and password reset tokens
//	└── audit/           # Audit event log
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./library.db", log)
//
//	feed := changefeed.New()
//	booksRepo := books.NewRepository(db.DB, feed)
//	usersRepo := users.NewRepository(db.DB)
//
//	page, err := booksRepo.Find(ctx, query.Build(userID, query.Selection{}, 10, nil))
//
// Book writes are published to the change feed after they commit, which is what
// drives live list, detail, favorites and stats views.
//
// # Interface Implementations
//
//   - books.Repository: implements screens.BookStore and livequery.Finder
//   - users.Repository: backs auth.Service
//   - audit.Repository: implements tasks.AuditEventCleaner
package database
