package screens

import (
	"context"
	"strings"
	"sync"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/query"
	"github.com/mrlokans/library/internal/session"
)

// SearchData is rendered by the search screen.
type SearchData struct {
	Selection query.Selection `json:"selection"`
	Results   []entities.Book `json:"results"`
	HasMore   bool            `json:"has_more"`
	Next      string          `json:"next,omitempty"`
	Searching bool            `json:"searching,omitempty"`
	Genres    []string        `json:"genres"`
	Statuses  []StatusOption  `json:"statuses"`
}

// Search combines free text with genre, status and sort selections.
//
// Genre, status and sort become store filters. Free text is matched locally
// against each fetched page, so a run keeps scanning pages until it has a
// page worth of matches, the store runs dry, or SearchMaxScanPages pages
// were read. The cursor always points at the last scanned record.
//
// Each run takes a generation number; a run finishing after a newer one
// started is discarded.
type Search struct {
	*view[SearchData]

	deps     Deps
	session  session.Session
	debounce *debouncer

	mu      sync.Mutex
	sel     query.Selection
	gen     uint64
	next    *query.Cursor
	hasMore bool
	loading bool
	closed  bool
	genres  []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSearch(deps Deps, sess session.Session, sel query.Selection) *Search {
	deps = deps.withDefaults()
	sel = sel.Normalized()
	ctx, cancel := context.WithCancel(context.Background())
	return &Search{
		view: newView(SearchData{
			Selection: sel,
			Results:   []entities.Book{},
			Genres:    entities.SuggestedGenres,
			Statuses:  StatusOptions(),
		}),
		deps:     deps,
		session:  sess,
		debounce: newDebouncer(deps.SearchDebounce),
		sel:      sel,
		genres:   entities.SuggestedGenres,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Mount runs the initial search. Debounced and re-run searches use ctx
// until the screen is unmounted.
func (s *Search) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.goRun()
}

// Selection returns the current selection.
func (s *Search) Selection() query.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// SetText updates the text and runs the search once typing settles.
func (s *Search) SetText(text string) {
	s.setSelection(func(sel query.Selection) query.Selection { return sel.WithText(text) })
	s.debounce.Trigger(s.goRun)
}

func (s *Search) ToggleGenre(genre string) {
	s.reselect(func(sel query.Selection) query.Selection { return sel.ToggleGenre(genre) })
}

func (s *Search) ToggleStatus(status entities.ReadingStatus) {
	s.reselect(func(sel query.Selection) query.Selection { return sel.ToggleStatus(status) })
}

func (s *Search) SortBy(field query.Field) {
	s.reselect(func(sel query.Selection) query.Selection { return sel.SortBy(field) })
}

func (s *Search) ToggleDirection() {
	s.reselect(func(sel query.Selection) query.Selection { return sel.ToggleDirection() })
}

// reselect applies a selection change and runs at once. Pending text is
// picked up by the same run.
func (s *Search) reselect(fn func(query.Selection) query.Selection) {
	s.setSelection(fn)
	s.debounce.Stop()
	s.goRun()
}

func (s *Search) setSelection(fn func(query.Selection) query.Selection) {
	s.mu.Lock()
	s.sel = fn(s.sel)
	sel := s.sel
	s.mu.Unlock()

	s.update(func(st *State[SearchData]) { st.Data.Selection = sel })
}

// Run searches page one with the current selection.
func (s *Search) Run(ctx context.Context) error {
	owner, ok := s.session.OwnerID()
	if !ok {
		s.empty(SearchData{Results: []entities.Book{}, Genres: entities.SuggestedGenres, Statuses: StatusOptions()})
		return nil
	}

	s.mu.Lock()
	s.gen++
	gen, sel := s.gen, s.sel
	s.loading = true
	s.mu.Unlock()

	s.update(func(st *State[SearchData]) {
		st.Data.Searching = true
		if st.Phase != PhaseReady && st.Phase != PhaseEmpty {
			st.Phase = PhaseLoading
		}
	})

	results, next, hasMore, err := s.scan(ctx, owner, sel, nil)
	genres := s.shelfGenres(ctx, owner)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	s.loading = false

	if err != nil {
		s.update(func(st *State[SearchData]) {
			st.Data.Searching = false
			st.Phase = PhaseError
			st.Alert = alertFor(err)
		})
		return err
	}

	s.next, s.hasMore, s.genres = next, hasMore, genres
	s.publish(sel, results, false)
	return nil
}

// Load runs page one, or continues after the encoded cursor when after is
// set. It backs the one-shot search endpoint.
func (s *Search) Load(ctx context.Context, after string) error {
	if after == "" {
		return s.Run(ctx)
	}
	cursor, err := query.DecodeCursor(after)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.next, s.hasMore = cursor, true
	s.mu.Unlock()
	return s.LoadMore(ctx)
}

// LoadMore appends further matches after the current cursor. It does
// nothing while a search is running or when nothing is left to scan.
func (s *Search) LoadMore(ctx context.Context) error {
	owner, ok := s.session.OwnerID()
	if !ok {
		return nil
	}

	s.mu.Lock()
	if s.loading || !s.hasMore || s.next == nil {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	gen, sel, after := s.gen, s.sel, s.next
	s.mu.Unlock()

	s.update(func(st *State[SearchData]) { st.Data.Searching = true })

	results, next, hasMore, err := s.scan(ctx, owner, sel, after)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	s.loading = false

	if err != nil {
		s.update(func(st *State[SearchData]) {
			st.Data.Searching = false
			st.Phase = PhaseError
			st.Alert = alertFor(err)
		})
		return err
	}

	if next != nil {
		s.next = next
	}
	s.hasMore = hasMore
	s.publish(sel, results, true)
	return nil
}

// Unmount cancels pending and running searches and closes the screen.
func (s *Search) Unmount() {
	s.debounce.Stop()
	s.mu.Lock()
	s.closed = true
	s.cancel()
	s.gen++
	s.mu.Unlock()
	s.wg.Wait()
	s.close()
}

// scan reads pages starting after the given cursor until enough matches
// were collected.
func (s *Search) scan(ctx context.Context, owner uint, sel query.Selection, after *query.Cursor) ([]entities.Book, *query.Cursor, bool, error) {
	size := s.deps.PageSize
	matches := []entities.Book{}
	cursor := after
	hasMore := false

	for i := 0; i < s.deps.SearchMaxScanPages; i++ {
		page, err := s.deps.Books.Find(ctx, query.Build(owner, sel, size, cursor))
		if err != nil {
			return nil, nil, false, err
		}
		matches = append(matches, query.FilterText(page.Books, sel.Text)...)
		if page.Next != nil {
			cursor = page.Next
		}
		hasMore = page.HasMore
		if !hasMore || len(matches) >= size {
			break
		}
	}
	return matches, cursor, hasMore, nil
}

// publish must be called with s.mu held.
func (s *Search) publish(sel query.Selection, results []entities.Book, appendResults bool) {
	next := ""
	if s.hasMore && s.next != nil {
		next = s.next.Encode()
	}
	s.update(func(st *State[SearchData]) {
		if appendResults {
			merged := make([]entities.Book, 0, len(st.Data.Results)+len(results))
			merged = append(merged, st.Data.Results...)
			results = append(merged, results...)
		}
		st.Data.Selection = sel
		st.Data.Results = results
		st.Data.Genres = s.genres
		st.Data.HasMore = s.hasMore
		st.Data.Next = next
		st.Data.Searching = false
		st.Alert = nil
		if len(results) == 0 && !s.hasMore {
			st.Phase = PhaseEmpty
		} else {
			st.Phase = PhaseReady
		}
	})
}

// shelfGenres lists the suggested genres followed by every other genre on
// the owner's shelf. A failed lookup falls back to the suggestions.
func (s *Search) shelfGenres(ctx context.Context, owner uint) []string {
	own, err := s.deps.Books.Genres(ctx, owner)
	if err != nil {
		if ctx.Err() == nil {
			s.deps.Log.Warn("failed to list genres", "error", err)
		}
		return entities.SuggestedGenres
	}
	return mergeGenres(entities.SuggestedGenres, own)
}

func mergeGenres(suggested, own []string) []string {
	out := append([]string(nil), suggested...)
	seen := make(map[string]bool, len(suggested)+len(own))
	for _, g := range suggested {
		seen[strings.ToLower(g)] = true
	}
	for _, g := range own {
		key := strings.ToLower(strings.TrimSpace(g))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, g)
	}
	return out
}

func (s *Search) goRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	ctx := s.ctx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Run(ctx); err != nil && ctx.Err() == nil {
			s.deps.Log.Warn("search failed", "error", err)
		}
	}()
}
