package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Log
		Auth
		Library
		Tasks
		Audit
		Maintenance
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Log struct {
		Level       string
		Format      string // "text" or "json"; empty picks by environment
		Environment string
	}
	Auth struct {
		SessionSecret     string
		SessionLifetime   time.Duration
		TokenExpiry       time.Duration
		BcryptCost        int
		SecureCookies     bool // Set to false for local dev without HTTPS
		MinPasswordLength int

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)

		// Password reset
		ResetTokenTTL    time.Duration
		ResetBaseURL     string // Link prefix mailed to users; the token is appended
		ResetRatePerHour int    // Reset emails allowed per address per hour
	}
	Library struct {
		PageSize            int
		SearchDebounce      time.Duration
		SearchMaxScanPages  int  // Remote pages scanned to fill one filtered search page
		OptimisticFavorites bool // Flip favorite locally before the backend confirms
		StreamHeartbeat     time.Duration
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Audit struct {
		RetentionDays int // Days to keep audit events (default: 30)
	}
	Maintenance struct {
		Enabled  bool
		Schedule string // Cron format: "0 * * * *" = hourly
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "")
	v.SetDefault("environment", "development")

	// Auth defaults
	v.SetDefault("auth_session_secret", "")       // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")  // 24 hours
	v.SetDefault("auth_token_expiry", "720h")     // 30 days
	v.SetDefault("auth_bcrypt_cost", 12)          // bcrypt cost factor
	v.SetDefault("auth_secure_cookies", true)     // HTTPS-only cookies
	v.SetDefault("auth_min_password_length", 6)   // Matches the sign-up form rule
	v.SetDefault("auth_max_login_attempts", 5)    // Max failed attempts
	v.SetDefault("auth_rate_limit_window", "15m") // Window for counting attempts
	v.SetDefault("auth_lockout_duration", "30m")  // Lockout duration
	v.SetDefault("auth_reset_token_ttl", "1h")
	v.SetDefault("auth_reset_base_url", "http://localhost:8188/reset-password?token=")
	v.SetDefault("auth_reset_rate_per_hour", 3)

	// Library defaults
	v.SetDefault("library_page_size", DefaultPageSize)
	v.SetDefault("library_search_debounce", "350ms")
	v.SetDefault("library_search_max_scan_pages", 5)
	v.SetDefault("library_optimistic_favorites", true)
	v.SetDefault("library_stream_heartbeat", "30s")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_max_retries", 3)
	v.SetDefault("task_retry_delay", "1m")
	v.SetDefault("task_timeout", "5m")
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	v.SetDefault("audit_retention_days", 30)
	v.SetDefault("maintenance_enabled", true)
	v.SetDefault("maintenance_schedule", "0 * * * *") // Hourly at :00

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Log: Log{
			Level:       v.GetString("LOG_LEVEL"),
			Format:      v.GetString("LOG_FORMAT"),
			Environment: v.GetString("ENVIRONMENT"),
		},
		Auth: Auth{
			SessionSecret:     v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:   v.GetDuration("AUTH_SESSION_LIFETIME"),
			TokenExpiry:       v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:        v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:     v.GetBool("AUTH_SECURE_COOKIES"),
			MinPasswordLength: v.GetInt("AUTH_MIN_PASSWORD_LENGTH"),
			MaxLoginAttempts:  v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:   v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:   v.GetDuration("AUTH_LOCKOUT_DURATION"),
			ResetTokenTTL:     v.GetDuration("AUTH_RESET_TOKEN_TTL"),
			ResetBaseURL:      v.GetString("AUTH_RESET_BASE_URL"),
			ResetRatePerHour:  v.GetInt("AUTH_RESET_RATE_PER_HOUR"),
		},
		Library: Library{
			PageSize:            v.GetInt("LIBRARY_PAGE_SIZE"),
			SearchDebounce:      v.GetDuration("LIBRARY_SEARCH_DEBOUNCE"),
			SearchMaxScanPages:  v.GetInt("LIBRARY_SEARCH_MAX_SCAN_PAGES"),
			OptimisticFavorites: v.GetBool("LIBRARY_OPTIMISTIC_FAVORITES"),
			StreamHeartbeat:     v.GetDuration("LIBRARY_STREAM_HEARTBEAT"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			RetryDelay:        v.GetDuration("TASK_RETRY_DELAY"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Maintenance: Maintenance{
			Enabled:  v.GetBool("MAINTENANCE_ENABLED"),
			Schedule: v.GetString("MAINTENANCE_SCHEDULE"),
		},
	}
}
