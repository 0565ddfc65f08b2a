package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/entities"
)

func setupSessionManager(t *testing.T) *SessionManager {
	t.Helper()

	sqlDB, err := setupTestDB(t).DB()
	if err != nil {
		t.Fatalf("failed to get SQL DB: %v", err)
	}

	sm, err := NewSessionManager(sqlDB, config.Auth{SessionLifetime: 24 * time.Hour})
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm
}

func TestNewSessionManager(t *testing.T) {
	sm := setupSessionManager(t)

	if sm.Cookie.Name != "session" {
		t.Errorf("Expected cookie name 'session', got '%s'", sm.Cookie.Name)
	}
	if !sm.Cookie.HttpOnly {
		t.Error("Cookie should be HttpOnly")
	}
	if sm.Cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("Expected SameSiteStrictMode, got %v", sm.Cookie.SameSite)
	}
	if sm.Cookie.Secure {
		t.Error("Cookie should not be Secure when SecureCookies is false")
	}
	if sm.IdleTimeout != 12*time.Hour {
		t.Errorf("Expected idle timeout of half the lifetime, got %v", sm.IdleTimeout)
	}
}

func TestNewSessionManager_DefaultLifetime(t *testing.T) {
	sqlDB, err := setupTestDB(t).DB()
	if err != nil {
		t.Fatalf("failed to get SQL DB: %v", err)
	}
	sm, err := NewSessionManager(sqlDB, config.Auth{SecureCookies: true})
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	if sm.Lifetime != 24*time.Hour {
		t.Errorf("Expected 24h default lifetime, got %v", sm.Lifetime)
	}
	if !sm.Cookie.Secure {
		t.Error("Cookie should be Secure")
	}
}

func TestSessionManager_CreateAndRetrieveSession(t *testing.T) {
	sm := setupSessionManager(t)
	user := &entities.User{ID: 123, Email: "ana@example.com", SessionVersion: 4}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	handler := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if data := sm.GetSessionData(r); data != nil {
			t.Errorf("expected no session before sign-in, got %+v", data)
		}

		if err := sm.CreateSession(r, user); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		data := sm.GetSessionData(r)
		if data == nil {
			t.Fatal("expected session data")
		}
		if data.UserID != 123 || data.Version != 4 {
			t.Errorf("unexpected session data: %+v", data)
		}
		if data.LoginAt.IsZero() {
			t.Error("LoginAt should be set")
		}
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rr, req)

	if len(rr.Result().Cookies()) == 0 {
		t.Error("Expected session cookie to be set")
	}
}

func TestSessionManager_DestroySession(t *testing.T) {
	sm := setupSessionManager(t)
	user := &entities.User{ID: 1, SessionVersion: 1}

	handler := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := sm.CreateSession(r, user); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if err := sm.DestroySession(r); err != nil {
			t.Fatalf("failed to destroy session: %v", err)
		}
		if data := sm.GetSessionData(r); data != nil {
			t.Errorf("expected no session after destroy, got %+v", data)
		}
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
