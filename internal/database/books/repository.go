// Package books is the book document store: owner-scoped CRUD plus execution
// of the declarative queries built by internal/query.
//
// Every read and write is scoped by owner. A book that exists but belongs to
// someone else is reported as ErrNotFound.
//
// # Usage
//
//	repo := books.NewRepository(db.DB, feed)
//	page, err := repo.Find(ctx, query.Build(userID, sel, 10, nil))
package books

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/library/internal/changefeed"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/id"
	"github.com/mrlokans/library/internal/query"
)

var (
	ErrNotFound      = errors.New("book not found")
	ErrOwnerRequired = errors.New("book owner is required")
	ErrUnknownField  = errors.New("unknown book field")
	ErrNoFields      = errors.New("no fields to update")
)

// Publisher is notified after every committed write.
type Publisher interface {
	Publish(changefeed.Change)
}

// updatableColumns are the columns UpdateFields accepts.
var updatableColumns = map[string]bool{
	"title":      true,
	"author":     true,
	"genre":      true,
	"status":     true,
	"favorite":   true,
	"pages":      true,
	"summary":    true,
	"updated_at": true,
}

var filterColumns = map[query.Field]string{
	query.FieldID:       "id",
	query.FieldOwner:    "owner_id",
	query.FieldGenre:    "genre",
	query.FieldStatus:   "status",
	query.FieldFavorite: "favorite",
}

// Repository handles all book database operations.
type Repository struct {
	db   *gorm.DB
	feed Publisher
}

// NewRepository creates a new books repository. feed may be nil.
func NewRepository(db *gorm.DB, feed Publisher) *Repository {
	return &Repository{db: db, feed: feed}
}

// Create stores a new book, assigning its id, creation time and default status.
func (r *Repository) Create(ctx context.Context, book *entities.Book) error {
	if book.OwnerID == 0 {
		return ErrOwnerRequired
	}
	if book.ID == "" {
		bookID, err := id.Generate(id.PrefixBook)
		if err != nil {
			return err
		}
		book.ID = bookID
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now()
	}
	book.CreatedAt = book.CreatedAt.UTC()
	if book.Status == "" {
		book.Status = entities.DefaultStatus
	}

	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}

	r.publish(book.OwnerID, book.ID, changefeed.OpCreated)
	return nil
}

// Get fetches one of the owner's books.
func (r *Repository) Get(ctx context.Context, ownerID uint, bookID string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", bookID, ownerID).
		First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &book, nil
}

// UpdateFields writes only the given columns. Keys are column names.
func (r *Repository) UpdateFields(ctx context.Context, ownerID uint, bookID string, fields map[string]any) error {
	if len(fields) == 0 {
		return ErrNoFields
	}
	for column := range fields {
		if !updatableColumns[column] {
			return fmt.Errorf("%w: %s", ErrUnknownField, column)
		}
	}
	if t, ok := fields["updated_at"].(time.Time); ok {
		fields["updated_at"] = t.UTC()
	}

	result := r.db.WithContext(ctx).
		Model(&entities.Book{}).
		Where("id = ? AND owner_id = ?", bookID, ownerID).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update book: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.publish(ownerID, bookID, changefeed.OpUpdated)
	return nil
}

// Delete removes one of the owner's books.
func (r *Repository) Delete(ctx context.Context, ownerID uint, bookID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", bookID, ownerID).
		Delete(&entities.Book{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete book: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.publish(ownerID, bookID, changefeed.OpDeleted)
	return nil
}

// Find executes q. The owner filter is mandatory.
func (r *Repository) Find(ctx context.Context, q query.Query) (query.Page, error) {
	if q.OwnerID() == 0 {
		return query.Page{}, ErrOwnerRequired
	}

	tx := r.db.WithContext(ctx).Model(&entities.Book{})
	for _, f := range q.Filters {
		column, ok := filterColumns[f.Field]
		if !ok {
			return query.Page{}, fmt.Errorf("%w: %s", ErrUnknownField, f.Field)
		}
		tx = tx.Where(column+" = ?", f.Value)
	}

	column := "created_at"
	if q.Order.Field == query.FieldTitle {
		column = "title"
	}
	dir, op := "DESC", "<"
	if q.Order.Direction == query.Asc {
		dir, op = "ASC", ">"
	}

	if c := q.StartAfter; c != nil {
		var value any = c.Value
		if column == "created_at" {
			t, err := c.Time()
			if err != nil {
				return query.Page{}, err
			}
			value = t.UTC()
		}
		tx = tx.Where(
			fmt.Sprintf("((%s %s ?) OR (%s = ? AND id %s ?))", column, op, column, op),
			value, value, c.ID,
		)
	}

	tx = tx.Order(column + " " + dir).Order("id " + dir)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var books []entities.Book
	if err := tx.Find(&books).Error; err != nil {
		return query.Page{}, fmt.Errorf("failed to query books: %w", err)
	}
	return query.NewPage(q, books), nil
}

// Stats counts the owner's books per status and favorites.
func (r *Repository) Stats(ctx context.Context, ownerID uint) (entities.LibraryStats, error) {
	var rows []struct {
		Status entities.ReadingStatus
		N      int64
	}
	err := r.db.WithContext(ctx).
		Model(&entities.Book{}).
		Select("status, count(*) AS n").
		Where("owner_id = ?", ownerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return entities.LibraryStats{}, fmt.Errorf("failed to count books: %w", err)
	}

	var stats entities.LibraryStats
	for _, row := range rows {
		stats.Total += row.N
		switch row.Status {
		case entities.StatusRead:
			stats.Read = row.N
		case entities.StatusReading:
			stats.Reading = row.N
		case entities.StatusWantToRead:
			stats.WantToRead = row.N
		}
	}

	err = r.db.WithContext(ctx).
		Model(&entities.Book{}).
		Where("owner_id = ? AND favorite = ?", ownerID, true).
		Count(&stats.Favorites).Error
	if err != nil {
		return entities.LibraryStats{}, fmt.Errorf("failed to count favorites: %w", err)
	}
	return stats, nil
}

// Genres returns the distinct non-empty genres on the owner's shelf, sorted.
func (r *Repository) Genres(ctx context.Context, ownerID uint) ([]string, error) {
	var genres []string
	err := r.db.WithContext(ctx).
		Model(&entities.Book{}).
		Where("owner_id = ? AND genre <> ''", ownerID).
		Distinct().
		Order("genre ASC").
		Pluck("genre", &genres).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	return genres, nil
}

func (r *Repository) publish(ownerID uint, bookID string, op changefeed.Op) {
	if r.feed == nil {
		return
	}
	r.feed.Publish(changefeed.Change{OwnerID: ownerID, BookID: bookID, Op: op})
}
