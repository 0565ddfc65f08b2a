// Package livequery turns one-shot loads into live subscriptions: the load
// runs once up front and again after every change published for the owner.
package livequery

import (
	"context"

	"github.com/mrlokans/library/internal/changefeed"
	"github.com/mrlokans/library/internal/query"
)

// Source hands out change subscriptions per owner. *changefeed.Feed implements it.
type Source interface {
	Subscribe(ownerID uint) *changefeed.Subscription
}

// Finder executes book queries.
type Finder interface {
	Find(ctx context.Context, q query.Query) (query.Page, error)
}

// Snapshot is one delivery. Seq increases by one per delivery.
type Snapshot[T any] struct {
	Value T
	Err   error
	Seq   uint64
}

// Subscription delivers snapshots in order until closed.
type Subscription[T any] struct {
	updates chan Snapshot[T]
	cancel  context.CancelFunc
	done    chan struct{}
}

// Watch starts a live subscription. The change subscription is registered
// before the first load so no write between the two is missed.
// Cancelling ctx closes the subscription.
func Watch[T any](ctx context.Context, src Source, ownerID uint, load func(context.Context) (T, error)) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		updates: make(chan Snapshot[T]),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	changes := src.Subscribe(ownerID)
	go s.run(ctx, changes, load)
	return s
}

// Books watches the result of q, scoped to the query's owner.
func Books(ctx context.Context, src Source, finder Finder, q query.Query) *Subscription[query.Page] {
	return Watch(ctx, src, q.OwnerID(), func(ctx context.Context) (query.Page, error) {
		return finder.Find(ctx, q)
	})
}

// Updates is closed once the subscription ends.
func (s *Subscription[T]) Updates() <-chan Snapshot[T] {
	return s.updates
}

// Done is closed once the subscription ends.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Close revokes the subscription and waits for its goroutine to exit.
// Nothing is delivered after Close returns.
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription[T]) run(ctx context.Context, changes *changefeed.Subscription, load func(context.Context) (T, error)) {
	defer close(s.done)
	defer close(s.updates)
	defer changes.Close()

	var seq uint64
	for {
		v, err := load(ctx)
		if ctx.Err() != nil {
			return
		}
		seq++
		select {
		case s.updates <- Snapshot[T]{Value: v, Err: err, Seq: seq}:
		case <-ctx.Done():
			return
		}

		select {
		case _, ok := <-changes.C():
			if !ok {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
