package screens

import (
	"context"
	"errors"
	"sync"

	"github.com/mrlokans/library/internal/database/books"
	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/livequery"
	"github.com/mrlokans/library/internal/session"
)

// ErrBookNotLoaded is returned by actions that need the book on screen.
var ErrBookNotLoaded = errors.New("book not loaded")

// DetailData is rendered by the detail screen.
type DetailData struct {
	Book    *entities.Book `json:"book"`
	Deleted bool           `json:"deleted,omitempty"`
}

// BookDetail shows one book and offers favorite toggling and deletion.
// A missing book is a terminal error that sends the user back.
type BookDetail struct {
	*view[DetailData]

	deps    Deps
	session session.Session
	bookID  string

	mu   sync.Mutex
	sub  *livequery.Subscription[*entities.Book]
	done chan struct{}
	// busy guards against overlapping favorite toggles.
	busy bool
}

func NewBookDetail(deps Deps, sess session.Session, bookID string) *BookDetail {
	return &BookDetail{
		view:    newView(DetailData{}),
		deps:    deps.withDefaults(),
		session: sess,
		bookID:  bookID,
	}
}

// Load fetches the book once.
func (d *BookDetail) Load(ctx context.Context) error {
	owner, ok := d.session.OwnerID()
	if !ok {
		d.fail(alertFor(ErrNoSession))
		return ErrNoSession
	}

	book, err := d.deps.Books.Get(ctx, owner, d.bookID)
	if err != nil {
		d.fail(alertFor(err))
		return err
	}
	d.ready(DetailData{Book: book})
	return nil
}

// Mount follows the book live. The subscription ends once the book is gone.
func (d *BookDetail) Mount(ctx context.Context) {
	owner, ok := d.session.OwnerID()
	if !ok {
		d.fail(alertFor(ErrNoSession))
		return
	}

	d.mu.Lock()
	if d.sub != nil || d.isClosed() {
		d.mu.Unlock()
		return
	}
	d.sub = livequery.Watch(ctx, d.deps.Changes, owner, func(ctx context.Context) (*entities.Book, error) {
		return d.deps.Books.Get(ctx, owner, d.bookID)
	})
	d.done = make(chan struct{})
	sub, done := d.sub, d.done
	d.mu.Unlock()

	go func() {
		defer close(done)
		for snap := range sub.Updates() {
			if snap.Err != nil {
				d.fail(alertFor(snap.Err))
				if errors.Is(snap.Err, books.ErrNotFound) {
					// Nothing left to follow. Releases the change subscription.
					sub.Close()
					return
				}
				continue
			}
			d.ready(DetailData{Book: snap.Value})
		}
	}()
}

// ToggleFavorite writes the negated favorite flag. With optimistic favorites
// the flag flips on screen before the write and flips back if it fails.
func (d *BookDetail) ToggleFavorite(ctx context.Context) error {
	owner, ok := d.session.OwnerID()
	if !ok {
		return ErrNoSession
	}

	d.mu.Lock()
	book := d.State().Data.Book
	if book == nil {
		d.mu.Unlock()
		return ErrBookNotLoaded
	}
	if d.busy {
		d.mu.Unlock()
		return nil
	}
	d.busy = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.busy = false
		d.mu.Unlock()
	}()

	want := !book.Favorite
	if d.deps.OptimisticFavorites {
		d.setFavorite(want)
	}

	err := d.deps.Books.UpdateFields(ctx, owner, d.bookID, map[string]any{"favorite": want})
	if err != nil {
		if d.deps.OptimisticFavorites {
			d.setFavorite(!want)
		}
		d.alert(alertFor(err))
		return err
	}
	if !d.deps.OptimisticFavorites {
		d.setFavorite(want)
	}
	return nil
}

// Delete removes the book. The screen is left empty with Deleted set.
func (d *BookDetail) Delete(ctx context.Context) error {
	owner, ok := d.session.OwnerID()
	if !ok {
		return ErrNoSession
	}

	if err := d.deps.Books.Delete(ctx, owner, d.bookID); err != nil {
		d.alert(alertFor(err))
		return err
	}

	d.stopWatching()
	d.empty(DetailData{Deleted: true})
	return nil
}

// Unmount revokes the live subscription and closes the screen.
func (d *BookDetail) Unmount() {
	d.stopWatching()
	d.close()
}

func (d *BookDetail) stopWatching() {
	d.mu.Lock()
	sub, done := d.sub, d.done
	d.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-done
	}
}

func (d *BookDetail) setFavorite(fav bool) {
	d.update(func(s *State[DetailData]) {
		if s.Data.Book == nil {
			return
		}
		b := *s.Data.Book
		b.Favorite = fav
		s.Data.Book = &b
	})
}
