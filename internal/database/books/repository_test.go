package books

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/library/internal/changefeed"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/query"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []changefeed.Change
}

func (p *recordingPublisher) Publish(c changefeed.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

func (p *recordingPublisher) ops() []changefeed.Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]changefeed.Op, len(p.changes))
	for i, c := range p.changes {
		out[i] = c.Op
	}
	return out
}

func setupTestDB(t *testing.T) (*gorm.DB, *Repository, *recordingPublisher) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "books.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Book{}))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	pub := &recordingPublisher{}
	return db, NewRepository(db, pub), pub
}

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *Repository, owner uint, n int) []*entities.Book {
	t.Helper()
	out := make([]*entities.Book, 0, n)
	for i := 0; i < n; i++ {
		b := &entities.Book{
			OwnerID:   owner,
			Title:     fmt.Sprintf("Book %02d", i),
			Author:    "Author",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(context.Background(), b))
		out = append(out, b)
	}
	return out
}

func ids(books []entities.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}

func TestRepository_Create(t *testing.T) {
	_, repo, pub := setupTestDB(t)
	ctx := context.Background()

	book := &entities.Book{OwnerID: 1, Title: "1984", Author: "George Orwell"}
	require.NoError(t, repo.Create(ctx, book))

	assert.NotEmpty(t, book.ID)
	assert.Equal(t, entities.StatusWantToRead, book.Status)
	assert.False(t, book.CreatedAt.IsZero())
	assert.Equal(t, []changefeed.Op{changefeed.OpCreated}, pub.ops())

	err := repo.Create(ctx, &entities.Book{Title: "orphan"})
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestRepository_GetScopedByOwner(t *testing.T) {
	_, repo, _ := setupTestDB(t)
	ctx := context.Background()
	books := seed(t, repo, 1, 1)

	got, err := repo.Get(ctx, 1, books[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Book 00", got.Title)

	_, err = repo.Get(ctx, 2, books[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Get(ctx, 1, "bk_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_UpdateFields(t *testing.T) {
	_, repo, pub := setupTestDB(t)
	ctx := context.Background()
	book := seed(t, repo, 1, 1)[0]

	t.Run("favorite only", func(t *testing.T) {
		require.NoError(t, repo.UpdateFields(ctx, 1, book.ID, map[string]any{"favorite": true}))

		got, err := repo.Get(ctx, 1, book.ID)
		require.NoError(t, err)
		assert.True(t, got.Favorite)
		assert.Equal(t, book.Title, got.Title)
		assert.Nil(t, got.UpdatedAt)
	})

	t.Run("false is written", func(t *testing.T) {
		require.NoError(t, repo.UpdateFields(ctx, 1, book.ID, map[string]any{"favorite": false}))
		got, err := repo.Get(ctx, 1, book.ID)
		require.NoError(t, err)
		assert.False(t, got.Favorite)
	})

	t.Run("edit fields", func(t *testing.T) {
		pages := 320
		now := time.Now()
		require.NoError(t, repo.UpdateFields(ctx, 1, book.ID, map[string]any{
			"title":      "Dune",
			"status":     entities.StatusRead,
			"pages":      &pages,
			"updated_at": now,
		}))

		got, err := repo.Get(ctx, 1, book.ID)
		require.NoError(t, err)
		assert.Equal(t, "Dune", got.Title)
		assert.Equal(t, entities.StatusRead, got.Status)
		require.NotNil(t, got.Pages)
		assert.Equal(t, 320, *got.Pages)
		require.NotNil(t, got.UpdatedAt)
	})

	t.Run("rejects unknown columns", func(t *testing.T) {
		err := repo.UpdateFields(ctx, 1, book.ID, map[string]any{"owner_id": 2})
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("rejects empty update", func(t *testing.T) {
		assert.ErrorIs(t, repo.UpdateFields(ctx, 1, book.ID, nil), ErrNoFields)
	})

	t.Run("foreign owner", func(t *testing.T) {
		err := repo.UpdateFields(ctx, 2, book.ID, map[string]any{"favorite": true})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.Equal(t, []changefeed.Op{
		changefeed.OpCreated, changefeed.OpUpdated, changefeed.OpUpdated, changefeed.OpUpdated,
	}, pub.ops())
}

func TestRepository_Delete(t *testing.T) {
	_, repo, pub := setupTestDB(t)
	ctx := context.Background()
	book := seed(t, repo, 1, 1)[0]

	assert.ErrorIs(t, repo.Delete(ctx, 2, book.ID), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, 1, book.ID))
	assert.ErrorIs(t, repo.Delete(ctx, 1, book.ID), ErrNotFound)

	_, err := repo.Get(ctx, 1, book.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []changefeed.Op{changefeed.OpCreated, changefeed.OpDeleted}, pub.ops())
}

func TestRepository_FindPaginatesByCreatedAt(t *testing.T) {
	_, repo, _ := setupTestDB(t)
	ctx := context.Background()
	seeded := seed(t, repo, 1, 25)
	seed(t, repo, 2, 3)

	var all []string
	var after *query.Cursor
	pages := 0
	for {
		page, err := repo.Find(ctx, query.Build(1, query.Selection{}, 10, after))
		require.NoError(t, err)
		pages++
		all = append(all, ids(page.Books)...)
		if !page.HasMore {
			break
		}
		after = page.Next
	}

	assert.Equal(t, 3, pages)
	require.Len(t, all, 25)
	assert.Equal(t, seeded[24].ID, all[0], "newest first")
	assert.Equal(t, seeded[0].ID, all[24])
}

func TestRepository_FindByTitleWithTies(t *testing.T) {
	_, repo, _ := setupTestDB(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &entities.Book{OwnerID: 1, Title: "Same", Author: "A"}))
	}
	require.NoError(t, repo.Create(ctx, &entities.Book{OwnerID: 1, Title: "Alpha", Author: "A"}))

	sel := query.Selection{SortField: query.FieldTitle, Direction: query.Asc}
	first, err := repo.Find(ctx, query.Build(1, sel, 3, nil))
	require.NoError(t, err)
	require.Len(t, first.Books, 3)
	assert.Equal(t, "Alpha", first.Books[0].Title)

	second, err := repo.Find(ctx, query.Build(1, sel, 3, first.Next))
	require.NoError(t, err)
	require.Len(t, second.Books, 3)

	seen := map[string]bool{}
	for _, id := range append(ids(first.Books), ids(second.Books)...) {
		assert.False(t, seen[id], "duplicate %s across pages", id)
		seen[id] = true
	}
	assert.Len(t, seen, 6)
}

func TestRepository_FindFilters(t *testing.T) {
	_, repo, _ := setupTestDB(t)
	ctx := context.Background()

	fixtures := []*entities.Book{
		{OwnerID: 1, Title: "Pride and Prejudice", Author: "Austen", Genre: "Romance", Status: entities.StatusRead, Favorite: true},
		{OwnerID: 1, Title: "Dune", Author: "Herbert", Genre: "Science Fiction", Status: entities.StatusReading},
		{OwnerID: 1, Title: "Emma", Author: "Austen", Genre: "Romance", Status: entities.StatusWantToRead},
		{OwnerID: 2, Title: "Persuasion", Author: "Austen", Genre: "Romance", Status: entities.StatusRead, Favorite: true},
	}
	for _, b := range fixtures {
		require.NoError(t, repo.Create(ctx, b))
	}

	tests := []struct {
		name string
		sel  query.Selection
		want int
	}{
		{"owner only", query.Selection{}, 3},
		{"genre", query.Selection{Genre: "Romance"}, 2},
		{"status", query.Selection{Status: entities.StatusRead}, 1},
		{"genre and status", query.Selection{Genre: "Romance", Status: entities.StatusWantToRead}, 1},
		{"favorites", query.Favorites(), 1},
		{"no match", query.Selection{Genre: "Fantasy"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.Find(ctx, query.Build(1, tt.sel, 10, nil))
			require.NoError(t, err)
			assert.Len(t, page.Books, tt.want)
			for _, b := range page.Books {
				assert.Equal(t, uint(1), b.OwnerID)
			}
		})
	}
}

func TestRepository_FindRequiresOwner(t *testing.T) {
	_, repo, _ := setupTestDB(t)
	_, err := repo.Find(context.Background(), query.Query{Limit: 10})
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestRepository_FindSingleBook(t *testing.T) {
	_, repo, _ := setupTestDB(t)
	book := seed(t, repo, 1, 3)[1]

	page, err := repo.Find(context.Background(), query.ForBook(1, book.ID))
	require.NoError(t, err)
	require.Len(t, page.Books, 1)
	assert.Equal(t, book.ID, page.Books[0].ID)
}

func TestRepository_StatsAndGenres(t *testing.T) {
	_, repo, _ := setupTestDB(t)
	ctx := context.Background()

	for _, b := range []*entities.Book{
		{OwnerID: 1, Title: "a", Author: "x", Genre: "Fantasy", Status: entities.StatusRead, Favorite: true},
		{OwnerID: 1, Title: "b", Author: "x", Genre: "Fantasy", Status: entities.StatusRead},
		{OwnerID: 1, Title: "c", Author: "x", Genre: "Biography", Status: entities.StatusReading},
		{OwnerID: 1, Title: "d", Author: "x"},
		{OwnerID: 2, Title: "e", Author: "x", Genre: "Romance", Status: entities.StatusRead},
	} {
		require.NoError(t, repo.Create(ctx, b))
	}

	stats, err := repo.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.LibraryStats{Total: 4, Read: 2, Reading: 1, WantToRead: 1, Favorites: 1}, stats)
	assert.Equal(t, int64(2), stats.ToRead())

	genres, err := repo.Genres(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Biography", "Fantasy"}, genres)

	empty, err := repo.Stats(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, entities.LibraryStats{}, empty)
}
