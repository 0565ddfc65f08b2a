package config

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./library.db"

	// DefaultPageSize is the number of books fetched per page by list,
	// favorites and search screens.
	DefaultPageSize = 10
)
