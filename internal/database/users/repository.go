// Package users provides database operations for accounts and password
// reset tokens.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetByEmail(ctx, "ana@example.com")
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/entities"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrResetNotFound = errors.New("password reset not found or expired")
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a user. The email must not be registered yet.
func (r *Repository) Create(ctx context.Context, user *entities.User) error {
	user.Email = NormalizeEmail(user.Email)
	if user.SessionVersion == 0 {
		user.SessionVersion = 1
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.User, error) {
	var user entities.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var user entities.User
	if err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByTokenHash retrieves a user by their hashed API token.
func (r *Repository) GetByTokenHash(ctx context.Context, hash string) (*entities.User, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	var user entities.User
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// Update writes the given columns of one user.
func (r *Repository) Update(ctx context.Context, id uint, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&entities.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BumpSessionVersion invalidates every session issued to the user.
func (r *Repository) BumpSessionVersion(ctx context.Context, id uint) error {
	return r.Update(ctx, id, map[string]any{"session_version": gorm.Expr("session_version + 1")})
}

// Count returns the number of users.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.User{}).Count(&count).Error
	return count, err
}

// CreateReset stores a pending reset.
func (r *Repository) CreateReset(ctx context.Context, reset *entities.PasswordReset) error {
	reset.ExpiresAt = reset.ExpiresAt.UTC()
	if err := r.db.WithContext(ctx).Create(reset).Error; err != nil {
		return fmt.Errorf("failed to create password reset: %w", err)
	}
	return nil
}

// ConsumeReset marks the unexpired, unused reset with this hash as used and
// returns it. A reset can be consumed once.
func (r *Repository) ConsumeReset(ctx context.Context, tokenHash string, now time.Time) (*entities.PasswordReset, error) {
	now = now.UTC()
	var reset entities.PasswordReset
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", tokenHash, now).
			First(&reset).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrResetNotFound
			}
			return err
		}

		result := tx.Model(&entities.PasswordReset{}).
			Where("id = ? AND used_at IS NULL", reset.ID).
			Update("used_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrResetNotFound
		}
		reset.UsedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &reset, nil
}

// PurgeResets removes resets that expired or were used before the cutoff.
func (r *Repository) PurgeResets(ctx context.Context, before time.Time) (int64, error) {
	before = before.UTC()
	result := r.db.WithContext(ctx).
		Where("expires_at < ? OR (used_at IS NOT NULL AND used_at < ?)", before, before).
		Delete(&entities.PasswordReset{})
	return result.RowsAffected, result.Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
