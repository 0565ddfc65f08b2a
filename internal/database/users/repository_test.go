package users

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/library/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "users.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.User{}, &entities.PasswordReset{}))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return NewRepository(db)
}

func createUser(t *testing.T, repo *Repository, email string) *entities.User {
	t.Helper()
	user := &entities.User{Email: email, DisplayName: "Ana", PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestRepository_Create(t *testing.T) {
	repo := setupTestDB(t)

	user := createUser(t, repo, "  Ana@Example.com ")

	assert.NotZero(t, user.ID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, 1, user.SessionVersion)
}

func TestRepository_Create_DuplicateEmail(t *testing.T) {
	repo := setupTestDB(t)
	createUser(t, repo, "ana@example.com")

	err := repo.Create(context.Background(), &entities.User{Email: "ANA@example.com"})

	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRepository_Lookups(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	created := createUser(t, repo, "ana@example.com")
	require.NoError(t, repo.Update(ctx, created.ID, map[string]any{"token_hash": "abc"}))

	t.Run("by id", func(t *testing.T) {
		user, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "ana@example.com", user.Email)
	})

	t.Run("by email ignores case", func(t *testing.T) {
		user, err := repo.GetByEmail(ctx, "ANA@EXAMPLE.COM")
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
	})

	t.Run("by token hash", func(t *testing.T) {
		user, err := repo.GetByTokenHash(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = repo.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = repo.GetByTokenHash(ctx, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRepository_Update(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, repo, "ana@example.com")

	require.NoError(t, repo.Update(ctx, user.ID, map[string]any{"display_name": "Ana Maria"}))
	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", got.DisplayName)

	err = repo.Update(ctx, 999, map[string]any{"display_name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_BumpSessionVersion(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, repo, "ana@example.com")

	require.NoError(t, repo.BumpSessionVersion(ctx, user.ID))
	require.NoError(t, repo.BumpSessionVersion(ctx, user.ID))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SessionVersion)
}

func TestRepository_ConsumeReset(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, repo, "ana@example.com")
	now := time.Now().UTC()

	require.NoError(t, repo.CreateReset(ctx, &entities.PasswordReset{
		UserID:    user.ID,
		TokenHash: "live",
		ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, repo.CreateReset(ctx, &entities.PasswordReset{
		UserID:    user.ID,
		TokenHash: "stale",
		ExpiresAt: now.Add(-time.Minute),
	}))

	reset, err := repo.ConsumeReset(ctx, "live", now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, reset.UserID)
	require.NotNil(t, reset.UsedAt)

	_, err = repo.ConsumeReset(ctx, "live", now)
	assert.ErrorIs(t, err, ErrResetNotFound, "a reset is single use")

	_, err = repo.ConsumeReset(ctx, "stale", now)
	assert.ErrorIs(t, err, ErrResetNotFound)

	_, err = repo.ConsumeReset(ctx, "unknown", now)
	assert.ErrorIs(t, err, ErrResetNotFound)
}

func TestRepository_PurgeResets(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	user := createUser(t, repo, "ana@example.com")
	now := time.Now().UTC()

	for hash, expires := range map[string]time.Time{
		"expired": now.Add(-2 * time.Hour),
		"pending": now.Add(time.Hour),
	} {
		require.NoError(t, repo.CreateReset(ctx, &entities.PasswordReset{
			UserID: user.ID, TokenHash: hash, ExpiresAt: expires,
		}))
	}

	removed, err := repo.PurgeResets(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.ConsumeReset(ctx, "pending", now)
	assert.NoError(t, err)
}
