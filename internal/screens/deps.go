package screens

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/livequery"
	"github.com/mrlokans/library/internal/logger"
	"github.com/mrlokans/library/internal/query"
	"github.com/mrlokans/library/internal/validation"
)

const (
	DefaultSearchDebounce     = 350 * time.Millisecond
	DefaultSearchMaxScanPages = 5
	DefaultMinPasswordLength  = 6
)

// ErrNoSession is returned by screen operations that need a signed-in user.
var ErrNoSession = errors.New("not signed in")

// BookStore is the document database as seen by the screens.
type BookStore interface {
	Create(ctx context.Context, book *entities.Book) error
	Get(ctx context.Context, ownerID uint, bookID string) (*entities.Book, error)
	UpdateFields(ctx context.Context, ownerID uint, bookID string, fields map[string]any) error
	Delete(ctx context.Context, ownerID uint, bookID string) error
	Find(ctx context.Context, q query.Query) (query.Page, error)
	Stats(ctx context.Context, ownerID uint) (entities.LibraryStats, error)
	Genres(ctx context.Context, ownerID uint) ([]string, error)
}

// Accounts is the auth provider as seen by the account and profile screens.
type Accounts interface {
	Authenticate(ctx context.Context, email, password string) (*entities.User, error)
	Register(ctx context.Context, name, email, password string) (*entities.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	UpdateDisplayName(ctx context.Context, userID uint, name string) (*entities.User, error)
	SignOut(ctx context.Context, userID uint) error
}

// Deps is shared by every screen.
type Deps struct {
	Books    BookStore
	Changes  livequery.Source
	Accounts Accounts

	Validator *validation.Validator

	PageSize            int
	SearchDebounce      time.Duration
	SearchMaxScanPages  int
	OptimisticFavorites bool
	MinPasswordLength   int

	Log *slog.Logger

	now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	if d.PageSize <= 0 {
		d.PageSize = query.DefaultPageSize
	}
	if d.SearchDebounce <= 0 {
		d.SearchDebounce = DefaultSearchDebounce
	}
	if d.SearchMaxScanPages <= 0 {
		d.SearchMaxScanPages = DefaultSearchMaxScanPages
	}
	if d.MinPasswordLength <= 0 {
		d.MinPasswordLength = DefaultMinPasswordLength
	}
	d.Log = logger.OrDiscard(d.Log).With("component", "screens")
	if d.now == nil {
		d.now = time.Now
	}
	return d
}
