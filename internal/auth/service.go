package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mrlokans/library/internal/config"
	"github.com/mrlokans/library/internal/database/users"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/logger"
	"github.com/mrlokans/library/internal/validation"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("email already registered")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrAuthRequired  = errors.New("authentication required")
	ErrAccountLocked = errors.New("account is locked due to too many failed login attempts")
)

const defaultMaxLoginAttempts = 5

type registration struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"required,loose_email,max=254"`
	Password string `json:"password" validate:"required"`
}

// Service handles accounts, credentials and the auth state stream.
type Service struct {
	users    *users.Repository
	config   config.Auth
	broker   *StateBroker
	validate *validation.Validator
	notifier ResetNotifier
	resets   *resetThrottle
	log      *slog.Logger
	now      func() time.Time
}

// NewService creates a new authentication service. A nil broker gets a
// private one; a nil notifier drops reset links after logging the request.
func NewService(repo *users.Repository, cfg config.Auth, broker *StateBroker, notifier ResetNotifier, log *slog.Logger) *Service {
	if broker == nil {
		broker = NewStateBroker()
	}
	log = logger.OrDiscard(log).With("component", "auth")
	if notifier == nil {
		notifier = discardNotifier{log: log}
	}
	return &Service{
		users:    repo,
		config:   cfg,
		broker:   broker,
		validate: validation.New(),
		notifier: notifier,
		resets:   newResetThrottle(cfg.ResetRatePerHour),
		log:      log,
		now:      time.Now,
	}
}

// Broker returns the auth state stream the service publishes to.
func (s *Service) Broker() *StateBroker {
	return s.broker
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*entities.User, error) {
	in := registration{Name: name, Email: strings.TrimSpace(email), Password: password}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password, s.config.MinPasswordLength); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		Email:          in.Email,
		DisplayName:    strings.TrimSpace(name),
		PasswordHash:   hash,
		SessionVersion: 1,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.log.Info("user registered", "user_id", user.ID)
	s.publishUser(user)
	return user, nil
}

// Authenticate validates credentials and returns the user.
// Repeated failures lock the account for LockoutDuration.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entities.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	now := s.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		s.recordFailedLogin(ctx, user)
		return nil, err
	}

	err = s.users.Update(ctx, user.ID, map[string]any{
		"last_login_at":      now,
		"failed_login_count": 0,
		"locked_until":       nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLoginAt = &now
	user.FailedLoginCount = 0
	user.LockedUntil = nil

	s.publishUser(user)
	return user, nil
}

// recordFailedLogin increments the failed login counter and locks the account if threshold reached.
func (s *Service) recordFailedLogin(ctx context.Context, user *entities.User) {
	user.FailedLoginCount++
	updates := map[string]any{"failed_login_count": user.FailedLoginCount}

	maxAttempts := s.config.MaxLoginAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxLoginAttempts
	}
	if user.FailedLoginCount >= maxAttempts {
		lockout := s.config.LockoutDuration
		if lockout == 0 {
			lockout = 30 * time.Minute
		}
		updates["locked_until"] = s.now().Add(lockout)
		updates["failed_login_count"] = 0
		s.log.Warn("account locked", "user_id", user.ID)
	}

	if err := s.users.Update(ctx, user.ID, updates); err != nil {
		s.log.Error("failed to record failed login", "user_id", user.ID, "error", err)
	}
}

// GetUserByID retrieves a user by their ID.
func (s *Service) GetUserByID(ctx context.Context, id uint) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateDisplayName sets the user's display name. Blank names are rejected.
func (s *Service) UpdateDisplayName(ctx context.Context, id uint, name string) (*entities.User, error) {
	if err := s.validate.Var("display_name", name, "notblank,max=100"); err != nil {
		return nil, err
	}
	err := s.users.Update(ctx, id, map[string]any{"display_name": strings.TrimSpace(name)})
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		s.broker.Publish(StateChange{UserID: id, Err: err})
		return nil, err
	}
	s.publishUser(user)
	return user, nil
}

// SignOut announces that the user has left. Session destruction is up to
// the caller.
func (s *Service) SignOut(_ context.Context, id uint) error {
	s.broker.Publish(StateChange{UserID: id})
	return nil
}

// SessionValid reports whether a session issued at version still belongs to user.
func (s *Service) SessionValid(user *entities.User, version int) bool {
	return user != nil && user.SessionVersion == version
}

// ValidateToken checks a plaintext token and returns the associated user.
// Returns ErrTokenExpired if the token is past its expiry time.
func (s *Service) ValidateToken(ctx context.Context, token string) (*entities.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if s.config.TokenExpiry > 0 && user.TokenCreatedAt != nil {
		if s.now().Sub(*user.TokenCreatedAt) > s.config.TokenExpiry {
			return nil, ErrTokenExpired
		}
	}
	return user, nil
}

// GenerateToken creates a new API token for a user, replacing any previous one.
// Returns the plaintext token; only the hash is stored.
func (s *Service) GenerateToken(ctx context.Context, userID uint) (string, error) {
	plaintext, hash, err := GenerateSecretToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	err = s.users.Update(ctx, userID, map[string]any{
		"token_hash":       hash,
		"token_created_at": s.now(),
	})
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	return plaintext, nil
}

// RevokeToken removes a user's API token.
func (s *Service) RevokeToken(ctx context.Context, userID uint) error {
	err := s.users.Update(ctx, userID, map[string]any{
		"token_hash":       "",
		"token_created_at": nil,
	})
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// GetUserCount returns the number of users in the database.
func (s *Service) GetUserCount(ctx context.Context) (int64, error) {
	return s.users.Count(ctx)
}

func (s *Service) publishUser(user *entities.User) {
	s.broker.Publish(StateChange{UserID: user.ID, User: user.Profile()})
}
