package auth

import (
	"sync"

	"github.com/mrlokans/library/internal/entities"
)

// StateChange is one auth state transition for a user. User is nil when the
// user signed out or lost their sessions. Err reports a provider failure
// that observers should not treat as a transition.
type StateChange struct {
	UserID uint
	User   *entities.UserProfile
	Err    error
}

// SignedIn reports whether the change carries a user.
func (c StateChange) SignedIn() bool {
	return c.User != nil
}

// StateBroker fans out auth state changes per user. Each change carries the
// full state, so a slow subscriber only ever sees the latest one.
type StateBroker struct {
	mu   sync.Mutex
	subs map[uint]map[*StateSubscription]struct{}
}

func NewStateBroker() *StateBroker {
	return &StateBroker{subs: make(map[uint]map[*StateSubscription]struct{})}
}

// StateSubscription receives the changes of one user until closed.
type StateSubscription struct {
	broker *StateBroker
	userID uint
	ch     chan StateChange
	once   sync.Once
}

// C delivers changes. It is closed by Close.
func (s *StateSubscription) C() <-chan StateChange {
	return s.ch
}

// Close unregisters the subscription. Safe to call more than once.
func (s *StateSubscription) Close() {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[s.userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.userID)
		}
	}
	s.once.Do(func() { close(s.ch) })
}

// Subscribe registers interest in userID's auth state.
func (b *StateBroker) Subscribe(userID uint) *StateSubscription {
	sub := &StateSubscription{broker: b, userID: userID, ch: make(chan StateChange, 1)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*StateSubscription]struct{})
	}
	b.subs[userID][sub] = struct{}{}
	return sub
}

// Publish delivers c to every subscriber of c.UserID without blocking. A
// pending undelivered change is replaced.
func (b *StateBroker) Publish(c StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[c.UserID] {
		select {
		case sub.ch <- c:
			continue
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- c:
		default:
		}
	}
}

// Subscribers returns how many subscriptions userID has.
func (b *StateBroker) Subscribers(userID uint) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}
