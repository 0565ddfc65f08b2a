package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/logger"
)

// hstsMaxAge is one year.
const hstsMaxAge = 31536000

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := logger.OrDiscard(cfg.Log).With("component", "http")
	auditor := cfg.Auditor
	if auditor == nil {
		auditor = noopAuditor{}
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware(hstsMaxAge))
	}

	// Apply CSRF protection if a secret is configured
	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	authMiddleware := cfg.AuthMiddleware
	if authMiddleware == nil {
		authMiddleware = auth.NewMiddleware(cfg.AuthService, cfg.SessionManager)
	}
	router.Use(authMiddleware.Handler())

	health := NewHealthController(cfg.Database, cfg.Version)
	sessions := NewSessionController(cfg.AuthService.Broker(), cfg.StreamHeartbeat)
	accounts := NewAccountController(cfg.Screens, cfg.AuthService, cfg.SessionManager, cfg.RateLimiter, auditor, log)
	books := NewBooksController(cfg.Screens, auditor, cfg.StreamHeartbeat, log)
	favorites := NewFavoritesController(cfg.Screens, cfg.StreamHeartbeat, log)
	search := NewSearchController(cfg.Screens, log)
	profile := NewProfileController(cfg.Screens, auditor, cfg.StreamHeartbeat, log)
	activity := NewActivityController(auditor, log)

	// Health endpoints
	router.GET("/health", health.Status)

	api := router.Group("/api")

	// Session gate
	api.GET("/session", sessions.Current)
	api.GET("/session/stream", sessions.Stream)

	// Auth flow
	login := []gin.HandlerFunc{accounts.Login}
	if cfg.RateLimiter != nil {
		login = append([]gin.HandlerFunc{cfg.RateLimiter.RateLimitMiddleware()}, login...)
	}
	api.POST("/auth/register", accounts.Register)
	api.POST("/auth/login", login...)
	api.POST("/auth/logout", accounts.Logout)
	api.POST("/auth/password-reset", accounts.RequestReset)
	api.POST("/auth/password-reset/confirm", accounts.ConfirmReset)
	api.POST("/auth/token", accounts.GenerateToken)
	api.DELETE("/auth/token", accounts.RevokeToken)

	// Books
	api.GET("/books", books.List)
	api.GET("/books/stream", books.Stream)
	api.POST("/books", books.Create)
	api.GET("/books/:id", books.Get)
	api.GET("/books/:id/stream", books.StreamOne)
	api.GET("/books/:id/edit", books.Edit)
	api.PUT("/books/:id", books.Update)
	api.DELETE("/books/:id", books.Delete)
	api.POST("/books/:id/favorite", books.ToggleFavorite)

	// Favorites
	api.GET("/favorites", favorites.List)
	api.GET("/favorites/stream", favorites.Stream)

	// Search
	api.GET("/search", search.Search)
	api.GET("/search/ws", search.Interactive)

	// Profile and home
	api.GET("/profile", profile.Get)
	api.PUT("/profile", profile.Update)
	api.GET("/stats/stream", profile.StreamStats)
	api.GET("/activity", activity.List)

	return router
}
