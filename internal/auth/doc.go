// Package auth is the library's authentication provider: accounts with
// bcrypt passwords, cookie sessions through scs, bearer tokens for API
// clients, password reset links and a per-user stream of auth state.
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<hex-32-bytes>  # Auto-generated if empty
//	AUTH_SESSION_LIFETIME=24h           # Session duration
//	AUTH_TOKEN_EXPIRY=720h              # API token expiry (30 days default)
//	AUTH_BCRYPT_COST=12                 # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true            # HTTPS-only cookies
//	AUTH_MIN_PASSWORD_LENGTH=6
//	AUTH_RESET_TOKEN_TTL=1h
//	AUTH_RESET_RATE_PER_HOUR=3
//
// # Usage
//
//	broker := auth.NewStateBroker()
//	authService := auth.NewService(userRepo, cfg.Auth, broker, notifier, log)
//	authMiddleware := auth.NewMiddleware(authService, sessionManager)
//	router.Use(sessionManager.SessionLoadSave(), authMiddleware.Handler())
//
// Extract the user in handlers:
//
//	user := auth.GetUser(c) // nil on public routes without a session
//
// Every sign-in, profile change, sign-out and password reset is published
// on the StateBroker. The session gate subscribes to it.
package auth
