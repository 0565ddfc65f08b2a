package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/library/internal/audit"
	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/changefeed"
	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/database"
	auditRepo "github.com/mrlokans/library/internal/database/audit"
	"github.com/mrlokans/library/internal/database/books"
	"github.com/mrlokans/library/internal/database/users"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/query"
	"github.com/mrlokans/library/internal/screens"
	"github.com/mrlokans/library/internal/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	router  *gin.Engine
	db      *database.Database
	feed    *changefeed.Feed
	books   *books.Repository
	auth    *auth.Service
	audit   *audit.Service
	limiter *auth.RateLimiter
}

func testAuthConfig() config.Auth {
	return config.Auth{
		BcryptCost:        4,
		MinPasswordLength: 6,
		TokenExpiry:       time.Hour,
		SessionLifetime:   time.Hour,
		ResetTokenTTL:     time.Hour,
		ResetBaseURL:      "https://library.test/reset?token=",
		ResetRatePerHour:  3,
	}
}

// setupEnv builds the router over a temporary database. Without options it
// runs bearer-only: no cookie sessions and no CSRF.
func setupEnv(t *testing.T, opts ...func(*testEnv, *RouterConfig)) *testEnv {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "library.db"), nil)
	require.NoError(t, err)
	feed := changefeed.New()
	t.Cleanup(func() {
		feed.Close()
		db.Close()
	})

	env := &testEnv{
		db:    db,
		feed:  feed,
		books: books.NewRepository(db.DB, feed),
		auth:  auth.NewService(users.NewRepository(db.DB), testAuthConfig(), nil, nil, nil),
		audit: audit.NewService(auditRepo.NewRepository(db.DB), nil),
		limiter: auth.NewRateLimiter(auth.RateLimitConfig{
			MaxAttempts:     3,
			WindowDuration:  time.Minute,
			LockoutDuration: time.Minute,
		}),
	}
	t.Cleanup(env.limiter.Stop)
	t.Cleanup(env.audit.Wait)

	cfg := RouterConfig{
		Database: db,
		Screens: screens.Deps{
			Books:               env.books,
			Changes:             feed,
			Accounts:            env.auth,
			PageSize:            3,
			SearchDebounce:      20 * time.Millisecond,
			OptimisticFavorites: true,
		},
		Auditor:         env.audit,
		AuthService:     env.auth,
		RateLimiter:     env.limiter,
		StreamHeartbeat: time.Second,
		Version:         "test",
	}
	for _, opt := range opts {
		opt(env, &cfg)
	}
	env.router = NewRouter(cfg)
	return env
}

// signUp registers a user and returns it with a bearer token.
func (e *testEnv) signUp(t *testing.T, email string) (*entities.User, string) {
	t.Helper()
	ctx := context.Background()
	user, err := e.auth.Register(ctx, "Ana", email, "secret1")
	require.NoError(t, err)
	token, err := e.auth.GenerateToken(ctx, user.ID)
	require.NoError(t, err)
	return user, token
}

// seed stores n books for owner, titled "Book 01".."Book n", one minute apart.
func (e *testEnv) seed(t *testing.T, owner uint, n int, mutate func(i int, b *entities.Book)) []*entities.Book {
	t.Helper()
	out := make([]*entities.Book, 0, n)
	for i := 1; i <= n; i++ {
		b := &entities.Book{
			OwnerID:   owner,
			Title:     fmt.Sprintf("Book %02d", i),
			Author:    "Author",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if mutate != nil {
			mutate(i, b)
		}
		require.NoError(t, e.books.Create(context.Background(), b))
		out = append(out, b)
	}
	return out
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func titles(list []entities.Book) []string {
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = b.Title
	}
	return out
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &validation.Error{Fields: map[string]string{"title": "is required"}}, http.StatusBadRequest, "validation_failed"},
		{"bad cursor", query.ErrInvalidCursor, http.StatusBadRequest, "invalid_cursor"},
		{"short password", auth.ErrPasswordTooShort, http.StatusBadRequest, "invalid_password"},
		{"missing book", fmt.Errorf("loading: %w", books.ErrNotFound), http.StatusNotFound, "not_found"},
		{"unknown user", auth.ErrUserNotFound, http.StatusUnauthorized, "user_not_found"},
		{"wrong password", auth.ErrInvalidPassword, http.StatusUnauthorized, "incorrect_password"},
		{"no session", screens.ErrNoSession, http.StatusUnauthorized, "auth_required"},
		{"duplicate email", auth.ErrUserExists, http.StatusConflict, "email_taken"},
		{"locked", auth.ErrAccountLocked, http.StatusTooManyRequests, "account_locked"},
		{"reset throttled", auth.ErrResetThrottled, http.StatusTooManyRequests, "reset_throttled"},
		{"bad reset link", auth.ErrResetInvalid, http.StatusBadRequest, "reset_invalid"},
		{"backend", errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := statusFor(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("assigns an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, w.Body.String(), 36)
		assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
	})

	t.Run("keeps a valid caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "0f8fad5b-d9cb-469f-a165-70867728950e")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "0f8fad5b-d9cb-469f-a165-70867728950e", w.Body.String())
	})

	t.Run("replaces garbage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "<script>")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.NotEqual(t, "<script>", w.Body.String())
		assert.Len(t, w.Body.String(), 36)
	})
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := setupEnv(t)

	for _, path := range []string{"/api/books", "/api/favorites", "/api/profile", "/api/search", "/api/activity"} {
		w := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Contains(t, w.Body.String(), `"flow":"auth"`, path)
	}
}
