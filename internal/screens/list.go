package screens

import (
	"context"
	"sync"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/livequery"
	"github.com/mrlokans/library/internal/query"
	"github.com/mrlokans/library/internal/session"
)

// ListData is rendered by the book list and favorites screens.
type ListData struct {
	Books       []entities.Book `json:"books"`
	HasMore     bool            `json:"has_more"`
	Next        string          `json:"next,omitempty"`
	LoadingMore bool            `json:"loading_more,omitempty"`
}

// BookList is the live collection screen. Favorites is the same screen with
// a favorites-only selection.
//
// The live subscription covers the first page. Every snapshot replaces the
// list, so pages appended by LoadMore are dropped when the collection changes.
type BookList struct {
	*view[ListData]

	deps    Deps
	session session.Session
	sel     query.Selection

	mu          sync.Mutex
	next        *query.Cursor
	hasMore     bool
	loadingMore bool
	// gen changes whenever page one is replaced.
	gen uint64

	sub  *livequery.Subscription[query.Page]
	done chan struct{}
}

// NewBookList builds the "all books" screen, newest first.
func NewBookList(deps Deps, sess session.Session) *BookList {
	return newBookList(deps, sess, query.Selection{}.Normalized())
}

// NewFavorites builds the favorites screen.
func NewFavorites(deps Deps, sess session.Session) *BookList {
	return newBookList(deps, sess, query.Favorites())
}

func newBookList(deps Deps, sess session.Session, sel query.Selection) *BookList {
	return &BookList{
		view:    newView(ListData{Books: []entities.Book{}}),
		deps:    deps.withDefaults(),
		session: sess,
		sel:     sel,
	}
}

// Mount subscribes to page one. Without a signed-in user the screen goes
// straight to empty.
func (l *BookList) Mount(ctx context.Context) {
	owner, ok := l.session.OwnerID()
	if !ok {
		l.empty(ListData{Books: []entities.Book{}})
		return
	}

	l.mu.Lock()
	if l.sub != nil || l.isClosed() {
		l.mu.Unlock()
		return
	}
	q := query.Build(owner, l.sel, l.deps.PageSize, nil)
	l.sub = livequery.Books(ctx, l.deps.Changes, l.deps.Books, q)
	l.done = make(chan struct{})
	sub, done := l.sub, l.done
	l.mu.Unlock()

	go func() {
		defer close(done)
		for snap := range sub.Updates() {
			if snap.Err != nil {
				l.deps.Log.Warn("book list snapshot failed", "owner_id", owner, "error", snap.Err)
				l.fail(alertFor(snap.Err))
				continue
			}
			l.replace(snap.Value)
		}
	}()
}

// Refresh re-fetches page one once.
func (l *BookList) Refresh(ctx context.Context) error {
	owner, ok := l.session.OwnerID()
	if !ok {
		l.empty(ListData{Books: []entities.Book{}})
		return nil
	}

	page, err := l.deps.Books.Find(ctx, query.Build(owner, l.sel, l.deps.PageSize, nil))
	if err != nil {
		l.fail(alertFor(err))
		return err
	}
	l.replace(page)
	return nil
}

// Load fetches page one, or the page after the encoded cursor when after is
// set. It backs the one-shot list endpoints.
func (l *BookList) Load(ctx context.Context, after string) error {
	if after == "" {
		return l.Refresh(ctx)
	}
	cursor, err := query.DecodeCursor(after)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.next = cursor
	l.hasMore = true
	l.mu.Unlock()
	return l.LoadMore(ctx)
}

// LoadMore appends the next page. It does nothing while another load is
// running, after the last page, or before page one has arrived.
func (l *BookList) LoadMore(ctx context.Context) error {
	owner, ok := l.session.OwnerID()
	if !ok {
		return nil
	}

	l.mu.Lock()
	if l.loadingMore || !l.hasMore || l.next == nil {
		l.mu.Unlock()
		return nil
	}
	l.loadingMore = true
	after, gen := l.next, l.gen
	l.mu.Unlock()

	l.update(func(s *State[ListData]) { s.Data.LoadingMore = true })

	page, err := l.deps.Books.Find(ctx, query.Build(owner, l.sel, l.deps.PageSize, after))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadingMore = false

	if err != nil {
		l.update(func(s *State[ListData]) {
			s.Data.LoadingMore = false
			s.Phase = PhaseError
			s.Alert = alertFor(err)
		})
		return err
	}
	if gen != l.gen {
		// Page one was replaced while this page was in flight.
		l.update(func(s *State[ListData]) { s.Data.LoadingMore = false })
		return nil
	}

	if page.Next != nil {
		l.next = page.Next
	}
	l.hasMore = page.HasMore
	next := l.encodedNext()
	l.update(func(s *State[ListData]) {
		books := make([]entities.Book, 0, len(s.Data.Books)+len(page.Books))
		books = append(books, s.Data.Books...)
		books = append(books, page.Books...)
		s.Data = ListData{Books: books, HasMore: page.HasMore, Next: next}
		if len(books) == 0 {
			s.Phase = PhaseEmpty
		} else {
			s.Phase = PhaseReady
		}
		s.Alert = nil
	})
	return nil
}

// Unmount revokes the live subscription and closes the screen.
func (l *BookList) Unmount() {
	l.mu.Lock()
	sub, done := l.sub, l.done
	l.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-done
	}
	l.close()
}

func (l *BookList) replace(page query.Page) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gen++
	l.next = page.Next
	l.hasMore = page.HasMore

	books := page.Books
	if books == nil {
		books = []entities.Book{}
	}
	data := ListData{Books: books, HasMore: page.HasMore, Next: l.encodedNext(), LoadingMore: l.loadingMore}
	if len(books) == 0 {
		l.empty(data)
	} else {
		l.ready(data)
	}
}

func (l *BookList) encodedNext() string {
	if !l.hasMore || l.next == nil {
		return ""
	}
	return l.next.Encode()
}
