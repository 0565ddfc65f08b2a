package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mrlokans/library/internal/database/users"
	"github.com/mrlokans/library/internal/entities"
)

var (
	ErrResetInvalid   = errors.New("reset link is invalid or has expired")
	ErrResetThrottled = errors.New("too many password reset requests")
)

const (
	defaultResetTTL     = time.Hour
	defaultResetPerHour = 3
	throttleIdle        = 2 * time.Hour
	throttlePruneSize   = 1024
)

// PasswordResetNotice is everything needed to deliver a reset link.
type PasswordResetNotice struct {
	UserID      uint      `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Link        string    `json:"link"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ResetNotifier delivers reset links, typically by queueing an email.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, notice PasswordResetNotice) error
}

type discardNotifier struct {
	log *slog.Logger
}

func (n discardNotifier) NotifyPasswordReset(_ context.Context, notice PasswordResetNotice) error {
	n.log.Warn("no reset notifier configured, reset link dropped", "user_id", notice.UserID)
	return nil
}

// RequestPasswordReset issues a reset link for the account behind email.
// Unknown addresses succeed without sending anything so the response does
// not reveal which emails are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := s.validate.Var("email", email, "required,loose_email"); err != nil {
		return err
	}
	if !s.resets.allow(users.NormalizeEmail(email), s.now()) {
		return ErrResetThrottled
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.log.Debug("password reset requested for unknown email")
			return nil
		}
		return err
	}

	plaintext, hash, err := GenerateSecretToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	ttl := s.config.ResetTokenTTL
	if ttl <= 0 {
		ttl = defaultResetTTL
	}
	reset := &entities.PasswordReset{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.users.CreateReset(ctx, reset); err != nil {
		return err
	}

	notice := PasswordResetNotice{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Link:        s.config.ResetBaseURL + plaintext,
		ExpiresAt:   reset.ExpiresAt,
	}
	if err := s.notifier.NotifyPasswordReset(ctx, notice); err != nil {
		return fmt.Errorf("failed to send reset link: %w", err)
	}

	s.log.Info("password reset requested", "user_id", user.ID)
	return nil
}

// ConfirmPasswordReset sets a new password using a reset token. The token
// is single use. Every existing session and API token of the user is revoked.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword, s.config.MinPasswordLength); err != nil {
		return err
	}
	if token == "" {
		return ErrResetInvalid
	}

	reset, err := s.users.ConsumeReset(ctx, HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, users.ErrResetNotFound) {
			return ErrResetInvalid
		}
		return err
	}

	hash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.users.Update(ctx, reset.UserID, map[string]any{
		"password_hash":      hash,
		"failed_login_count": 0,
		"locked_until":       nil,
		"token_hash":         "",
		"token_created_at":   nil,
	})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.users.BumpSessionVersion(ctx, reset.UserID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	s.log.Info("password reset completed", "user_id", reset.UserID)
	s.broker.Publish(StateChange{UserID: reset.UserID})
	return nil
}

// PurgeExpiredResets removes reset tokens that expired or were used before the cutoff.
func (s *Service) PurgeExpiredResets(ctx context.Context, before time.Time) (int64, error) {
	return s.users.PurgeResets(ctx, before)
}

// resetThrottle keeps one token bucket per email address.
type resetThrottle struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*throttleEntry
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newResetThrottle(perHour int) *resetThrottle {
	if perHour <= 0 {
		perHour = defaultResetPerHour
	}
	return &resetThrottle{
		limit:    rate.Every(time.Hour / time.Duration(perHour)),
		burst:    perHour,
		limiters: make(map[string]*throttleEntry),
	}
}

func (t *resetThrottle) allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.limiters) >= throttlePruneSize {
		for k, e := range t.limiters {
			if now.Sub(e.lastSeen) > throttleIdle {
				delete(t.limiters, k)
			}
		}
	}

	e, ok := t.limiters[key]
	if !ok {
		e = &throttleEntry{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
