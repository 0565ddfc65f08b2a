// Package changefeed fans out book write notifications to live subscribers,
// keyed by owner.
package changefeed

import (
	"sync"
	"time"
)

type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change describes one committed write.
type Change struct {
	OwnerID uint      `json:"owner_id"`
	BookID  string    `json:"book_id"`
	Op      Op        `json:"op"`
	At      time.Time `json:"at"`
}

// Feed is an in-process change broker. Publish never blocks: a subscriber
// that has not consumed its previous notification keeps only that one, so
// bursts coalesce into a single wake-up.
type Feed struct {
	mu     sync.RWMutex
	subs   map[uint]map[*Subscription]struct{}
	closed bool
}

func New() *Feed {
	return &Feed{subs: make(map[uint]map[*Subscription]struct{})}
}

// Subscription receives the changes for one owner until closed.
type Subscription struct {
	feed    *Feed
	ownerID uint
	ch      chan Change
	once    sync.Once
}

// C delivers changes. It is closed when the subscription or the feed closes.
func (s *Subscription) C() <-chan Change {
	return s.ch
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.feed.remove(s)
}

// Subscribe registers interest in ownerID's books.
func (f *Feed) Subscribe(ownerID uint) *Subscription {
	sub := &Subscription{feed: f, ownerID: ownerID, ch: make(chan Change, 1)}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	if f.subs[ownerID] == nil {
		f.subs[ownerID] = make(map[*Subscription]struct{})
	}
	f.subs[ownerID][sub] = struct{}{}
	return sub
}

// Publish notifies every subscriber of c.OwnerID.
func (f *Feed) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs[c.OwnerID] {
		select {
		case sub.ch <- c:
		default:
		}
	}
}

// Subscribers returns how many subscriptions ownerID has.
func (f *Feed) Subscribers(ownerID uint) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[ownerID])
}

// Close ends every subscription. Later subscriptions are born closed.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, set := range f.subs {
		for sub := range set {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	f.subs = make(map[uint]map[*Subscription]struct{})
}

func (f *Feed) remove(s *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if set, ok := f.subs[s.ownerID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(f.subs, s.ownerID)
		}
	}
	s.once.Do(func() { close(s.ch) })
}
