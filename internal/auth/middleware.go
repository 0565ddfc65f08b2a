package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/entities"
)

// Context keys for user data
const (
	ContextKeyUser     = "auth_user"
	ContextKeyAuthType = "auth_type" // "session", "bearer", or "none"
)

// AuthType indicates how the user was authenticated
type AuthType string

const (
	AuthTypeNone    AuthType = "none"
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// FlowAuth is reported to unauthenticated clients so they can switch to the
// sign-in screens.
const FlowAuth = "auth"

// DefaultPublicPaths are reachable without signing in.
var DefaultPublicPaths = []string{
	"/health",
	"/api/session",
	"/api/session/stream",
	"/api/auth/register",
	"/api/auth/login",
	"/api/auth/password-reset",
	"/api/auth/password-reset/confirm",
}

// Middleware handles authentication for HTTP requests.
type Middleware struct {
	service     *Service
	sessions    *SessionManager
	publicPaths map[string]bool
}

// NewMiddleware creates a new authentication middleware. sessions may be nil
// for bearer-only deployments and tests.
func NewMiddleware(service *Service, sessions *SessionManager, publicPaths ...string) *Middleware {
	if len(publicPaths) == 0 {
		publicPaths = DefaultPublicPaths
	}
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}
	return &Middleware{service: service, sessions: sessions, publicPaths: public}
}

// Handler authenticates requests by bearer token, then by session cookie.
// Public paths pass through with whatever identity the request carries.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := m.tryBearerAuth(c); user != nil {
			setUserContext(c, user, AuthTypeBearer)
			c.Next()
			return
		}

		if user := m.trySessionAuth(c); user != nil {
			setUserContext(c, user, AuthTypeSession)
			c.Next()
			return
		}

		c.Set(ContextKeyAuthType, AuthTypeNone)
		if m.publicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": ErrAuthRequired.Error(),
			"flow":  FlowAuth,
		})
	}
}

// tryBearerAuth attempts to authenticate using Bearer token.
func (m *Middleware) tryBearerAuth(c *gin.Context) *entities.User {
	token, ok := bearerToken(c)
	if !ok {
		return nil
	}
	user, err := m.service.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return nil
	}
	return user
}

// trySessionAuth attempts to authenticate using session cookie. Sessions
// issued before the user's last password reset are destroyed.
func (m *Middleware) trySessionAuth(c *gin.Context) *entities.User {
	if m.sessions == nil {
		return nil
	}
	data := m.sessions.GetSessionData(c.Request)
	if data == nil {
		return nil
	}

	user, err := m.service.GetUserByID(c.Request.Context(), data.UserID)
	if err != nil || !m.service.SessionValid(user, data.Version) {
		_ = m.sessions.DestroySession(c.Request)
		return nil
	}
	return user
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setUserContext(c *gin.Context, user *entities.User, authType AuthType) {
	c.Set(ContextKeyUser, user)
	c.Set(ContextKeyAuthType, authType)
}

// GetUser returns the authenticated user, or nil.
func GetUser(c *gin.Context) *entities.User {
	if v, exists := c.Get(ContextKeyUser); exists {
		if user, ok := v.(*entities.User); ok {
			return user
		}
	}
	return nil
}

// GetUserID returns the authenticated user's ID, or 0.
func GetUserID(c *gin.Context) uint {
	if user := GetUser(c); user != nil {
		return user.ID
	}
	return 0
}

// GetAuthType retrieves the authentication method used.
func GetAuthType(c *gin.Context) AuthType {
	if t, exists := c.Get(ContextKeyAuthType); exists {
		if authType, ok := t.(AuthType); ok {
			return authType
		}
	}
	return AuthTypeNone
}

// IsAuthenticated returns true if the request carries a user.
func IsAuthenticated(c *gin.Context) bool {
	return GetUser(c) != nil
}
