package auth

import (
	"bytes"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	expected := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	}
	for header, want := range expected {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rr.Header().Get("Permissions-Policy") == "" {
		t.Error("Permissions-Policy should be set")
	}
}

func TestHSTSHeader(t *testing.T) {
	router := gin.New()
	router.Use(StrictTransportSecurityMiddleware(0))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	plain := httptest.NewRecorder()
	router.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/", nil))
	if plain.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, proxied)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("unexpected HSTS header %q", got)
	}

	direct := httptest.NewRequest(http.MethodGet, "/", nil)
	direct.TLS = &tls.ConnectionState{}
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, direct)
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS should be sent over TLS")
	}
}

func newTestRateLimiter(t *testing.T, max int) (*RateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     max,
		WindowDuration:  time.Minute,
		LockoutDuration: 5 * time.Minute,
	})
	rl.now = clock.Now
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestRateLimiter_LocksAfterMaxAttempts(t *testing.T) {
	rl, clock := newTestRateLimiter(t, 3)

	for i := 0; i < 2; i++ {
		if allowed, _ := rl.Allow("10.0.0.1", "ana@example.com"); !allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		if locked, _ := rl.RecordFailure("10.0.0.1", "ana@example.com"); locked {
			t.Fatalf("attempt %d should not lock", i+1)
		}
	}

	locked, retry := rl.RecordFailure("10.0.0.1", "ANA@example.com")
	if !locked || retry != 5*time.Minute {
		t.Fatalf("third failure should lock, got locked=%v retry=%v", locked, retry)
	}
	if allowed, _ := rl.Allow("10.0.0.1", "ana@example.com"); allowed {
		t.Error("locked key should be rejected")
	}

	clock.Advance(6 * time.Minute)
	if allowed, _ := rl.Allow("10.0.0.1", "ana@example.com"); !allowed {
		t.Error("lockout should expire")
	}
}

func TestRateLimiter_SuccessResetsCounter(t *testing.T) {
	rl, _ := newTestRateLimiter(t, 2)

	rl.RecordFailure("10.0.0.1", "ana@example.com")
	rl.RecordSuccess("10.0.0.1", "ana@example.com")

	if locked, _ := rl.RecordFailure("10.0.0.1", "ana@example.com"); locked {
		t.Error("counter should restart after a success")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestRateLimiter(t, 1)

	rl.RecordFailure("10.0.0.1", "ana@example.com")

	if allowed, _ := rl.Allow("10.0.0.1", "bia@example.com"); !allowed {
		t.Error("other emails should not be affected")
	}
	if allowed, _ := rl.Allow("10.0.0.2", "ana@example.com"); !allowed {
		t.Error("other IPs should not be affected")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestRateLimiter(t, 1)
	rl.RecordFailure("192.0.2.1", "ana@example.com")

	router := gin.New()
	router.POST("/api/auth/login", rl.RateLimitMiddleware(), func(c *gin.Context) {
		var body credentials
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": body.Email})
	})

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	if rr := send(`{"email":"ana@example.com"}`); rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 for locked key, got %d", rr.Code)
	} else if rr.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}

	rr := send(`{"email":"bia@example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 for other key, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("bia@example.com")) {
		t.Error("handler should still be able to bind the cached body")
	}
}
