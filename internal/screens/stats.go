package screens

import (
	"context"
	"sync"

	"github.com/mrlokans/library/internal/entities"
	"github.com/mrlokans/library/internal/livequery"
	"github.com/mrlokans/library/internal/session"
)

// StatsData backs the home screen.
type StatsData struct {
	entities.LibraryStats
	ToRead int64 `json:"to_read"`
}

// Stats is a live view of the user's shelf totals.
type Stats struct {
	*view[StatsData]

	deps    Deps
	session session.Session

	mu   sync.Mutex
	sub  *livequery.Subscription[entities.LibraryStats]
	done chan struct{}
}

func NewStats(deps Deps, sess session.Session) *Stats {
	return &Stats{
		view:    newView(StatsData{}),
		deps:    deps.withDefaults(),
		session: sess,
	}
}

func (s *Stats) Mount(ctx context.Context) {
	owner, ok := s.session.OwnerID()
	if !ok {
		s.empty(StatsData{})
		return
	}

	s.mu.Lock()
	if s.sub != nil || s.isClosed() {
		s.mu.Unlock()
		return
	}
	s.sub = livequery.Watch(ctx, s.deps.Changes, owner, func(ctx context.Context) (entities.LibraryStats, error) {
		return s.deps.Books.Stats(ctx, owner)
	})
	s.done = make(chan struct{})
	sub, done := s.sub, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for snap := range sub.Updates() {
			if snap.Err != nil {
				s.fail(alertFor(snap.Err))
				continue
			}
			data := StatsData{LibraryStats: snap.Value, ToRead: snap.Value.ToRead()}
			if snap.Value.Total == 0 {
				s.empty(data)
			} else {
				s.ready(data)
			}
		}
	}()
}

func (s *Stats) Unmount() {
	s.mu.Lock()
	sub, done := s.sub, s.done
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-done
	}
	s.close()
}
