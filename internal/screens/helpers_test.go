package screens

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/library/internal/changefeed"
	"github.com/mrlokans/library/internal/database/books"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/query"
	"github.com/mrlokans/library/internal/session"
)

var (
	ana      = &entities.UserProfile{ID: 1, Email: "ana@example.com", DisplayName: "Ana"}
	signedIn = session.Session{User: ana}
	base     = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

// countingStore wraps the real repository, counts calls per method and can
// fail or hold any of them.
type countingStore struct {
	*books.Repository

	mu      sync.Mutex
	calls   map[string]int
	fields  []map[string]any
	fail    map[string]error
	queries []query.Query

	// hold, when set, is called at the start of Find.
	hold func(q query.Query)
}

func (s *countingStore) record(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	return s.fail[method]
}

func (s *countingStore) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *countingStore) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *countingStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = err
}

func (s *countingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[string]int{}
	s.fields = nil
	s.queries = nil
}

func (s *countingStore) Create(ctx context.Context, b *entities.Book) error {
	if err := s.record("Create"); err != nil {
		return err
	}
	return s.Repository.Create(ctx, b)
}

func (s *countingStore) Get(ctx context.Context, owner uint, id string) (*entities.Book, error) {
	if err := s.record("Get"); err != nil {
		return nil, err
	}
	return s.Repository.Get(ctx, owner, id)
}

func (s *countingStore) UpdateFields(ctx context.Context, owner uint, id string, fields map[string]any) error {
	s.mu.Lock()
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.fields = append(s.fields, copied)
	s.mu.Unlock()

	if err := s.record("UpdateFields"); err != nil {
		return err
	}
	return s.Repository.UpdateFields(ctx, owner, id, fields)
}

func (s *countingStore) Delete(ctx context.Context, owner uint, id string) error {
	if err := s.record("Delete"); err != nil {
		return err
	}
	return s.Repository.Delete(ctx, owner, id)
}

func (s *countingStore) Find(ctx context.Context, q query.Query) (query.Page, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	hold := s.hold
	s.mu.Unlock()
	if hold != nil {
		hold(q)
	}

	if err := s.record("Find"); err != nil {
		return query.Page{}, err
	}
	return s.Repository.Find(ctx, q)
}

func (s *countingStore) Stats(ctx context.Context, owner uint) (entities.LibraryStats, error) {
	if err := s.record("Stats"); err != nil {
		return entities.LibraryStats{}, err
	}
	return s.Repository.Stats(ctx, owner)
}

func (s *countingStore) SetHold(fn func(q query.Query)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = fn
}

func (s *countingStore) Queries() []query.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]query.Query(nil), s.queries...)
}

func (s *countingStore) LastFields() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fields) == 0 {
		return nil
	}
	return s.fields[len(s.fields)-1]
}

func setupStore(t *testing.T) (*countingStore, *changefeed.Feed) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "screens.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Book{}))

	feed := changefeed.New()
	t.Cleanup(func() {
		feed.Close()
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return &countingStore{
		Repository: books.NewRepository(db, feed),
		calls:      map[string]int{},
		fail:       map[string]error{},
	}, feed
}

func testDeps(store *countingStore, feed *changefeed.Feed) Deps {
	return Deps{
		Books:               store,
		Changes:             feed,
		Accounts:            &fakeAccounts{},
		PageSize:            3,
		SearchDebounce:      20 * time.Millisecond,
		SearchMaxScanPages:  5,
		OptimisticFavorites: true,
	}
}

// seed stores n books for ana, the newest last, titled "Book 01".."Book n".
func seed(t *testing.T, store *countingStore, n int, mutate func(i int, b *entities.Book)) []*entities.Book {
	t.Helper()
	out := make([]*entities.Book, 0, n)
	for i := 1; i <= n; i++ {
		b := &entities.Book{
			OwnerID:   ana.ID,
			Title:     fmt.Sprintf("Book %02d", i),
			Author:    "Author",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if mutate != nil {
			mutate(i, b)
		}
		require.NoError(t, store.Repository.Create(context.Background(), b))
		out = append(out, b)
	}
	return out
}

func titles(bs []entities.Book) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Title
	}
	return out
}

// waitFor reads states from updates until cond holds.
func waitFor[T any](t *testing.T, updates <-chan State[T], cond func(State[T]) bool) State[T] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st, ok := <-updates:
			require.True(t, ok, "state stream closed")
			if cond(st) {
				return st
			}
		case <-deadline:
			t.Fatal("timed out waiting for state")
			return State[T]{}
		}
	}
}

type fakeAccounts struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
	user  *entities.User
}

func (f *fakeAccounts) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[method]++
	return f.err
}

func (f *fakeAccounts) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeAccounts) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAccounts) result() *entities.User {
	if f.user != nil {
		return f.user
	}
	return &entities.User{ID: ana.ID, Email: ana.Email, DisplayName: ana.DisplayName}
}

func (f *fakeAccounts) Authenticate(_ context.Context, _, _ string) (*entities.User, error) {
	if err := f.record("Authenticate"); err != nil {
		return nil, err
	}
	return f.result(), nil
}

func (f *fakeAccounts) Register(_ context.Context, name, email, _ string) (*entities.User, error) {
	if err := f.record("Register"); err != nil {
		return nil, err
	}
	return &entities.User{ID: 2, Email: email, DisplayName: name}, nil
}

func (f *fakeAccounts) RequestPasswordReset(_ context.Context, _ string) error {
	return f.record("RequestPasswordReset")
}

func (f *fakeAccounts) ConfirmPasswordReset(_ context.Context, _, _ string) error {
	return f.record("ConfirmPasswordReset")
}

func (f *fakeAccounts) UpdateDisplayName(_ context.Context, _ uint, name string) (*entities.User, error) {
	if err := f.record("UpdateDisplayName"); err != nil {
		return nil, err
	}
	u := *f.result()
	u.DisplayName = name
	return &u, nil
}

func (f *fakeAccounts) SignOut(_ context.Context, _ uint) error {
	return f.record("SignOut")
}

var (
	errBackend = errors.New("backend unavailable")

	bob = entities.UserProfile{ID: 2, Email: "bob@example.com", DisplayName: "Bob"}
)
