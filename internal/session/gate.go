// Package session decides which navigation flow a client shows. A Gate is
// the session context handed to screens: it is created per connection,
// mounted explicitly, and follows the auth state stream of its user until
// unmounted.
package session

import (
	"context"
	"sync"

	"github.com/mrlokans/library/internal/auth"
	"github.com/mrlokans/library/internal/entities"
)

type Flow string

const (
	FlowAuth Flow = "auth"
	FlowMain Flow = "main"
)

var flowScreens = map[Flow][]string{
	FlowAuth: {"login", "register", "reset-password"},
	FlowMain: {"home", "books", "favorites", "search", "profile"},
}

// Screens lists the screens reachable in the flow, entry screen first.
func (f Flow) Screens() []string {
	return append([]string(nil), flowScreens[f]...)
}

// Resolve picks the flow for the current user.
func Resolve(user *entities.UserProfile) Flow {
	if user == nil {
		return FlowAuth
	}
	return FlowMain
}

// Session is the explicit session value passed to screens.
type Session struct {
	User *entities.UserProfile
}

// OwnerID returns the signed-in user's id, and false when nobody is signed in.
func (s Session) OwnerID() (uint, bool) {
	if s.User == nil {
		return 0, false
	}
	return s.User.ID, true
}

// Transition is one decision of the gate.
type Transition struct {
	Flow    Flow                  `json:"flow"`
	Screens []string              `json:"screens"`
	User    *entities.UserProfile `json:"user"`
}

// TransitionFor is the transition a client starting from user should apply.
func TransitionFor(user *entities.UserProfile) Transition {
	flow := Resolve(user)
	return Transition{Flow: flow, Screens: flow.Screens(), User: user}
}

// Source is the auth provider's state stream.
type Source interface {
	Subscribe(userID uint) *auth.StateSubscription
}

// Gate follows one user's auth state.
type Gate struct {
	source Source
	userID uint

	mu          sync.Mutex
	current     Transition
	transitions chan Transition
	cancel      context.CancelFunc
	done        chan struct{}
	mounted     bool
}

// NewGate creates an unmounted gate starting from user, which may be nil.
func NewGate(source Source, user *entities.UserProfile) *Gate {
	g := &Gate{
		source:      source,
		current:     TransitionFor(user),
		transitions: make(chan Transition),
		done:        make(chan struct{}),
	}
	if user != nil {
		g.userID = user.ID
	}
	return g
}

// Mount emits the current transition and starts following the auth state
// stream. Cancelling ctx has the same effect as Unmount. Mounting twice is a
// no-op.
func (g *Gate) Mount(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mounted {
		return
	}
	g.mounted = true

	ctx, g.cancel = context.WithCancel(ctx)

	var changes <-chan auth.StateChange
	var sub *auth.StateSubscription
	if g.userID != 0 {
		sub = g.source.Subscribe(g.userID)
		changes = sub.C()
	}
	go g.run(ctx, sub, changes, g.current)
}

func (g *Gate) run(ctx context.Context, sub *auth.StateSubscription, changes <-chan auth.StateChange, initial Transition) {
	defer close(g.done)
	defer close(g.transitions)
	if sub != nil {
		defer sub.Close()
	}

	if !g.emit(ctx, initial) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.Err != nil {
				continue
			}
			t := TransitionFor(change.User)
			g.mu.Lock()
			g.current = t
			g.mu.Unlock()
			if !g.emit(ctx, t) {
				return
			}
		}
	}
}

func (g *Gate) emit(ctx context.Context, t Transition) bool {
	select {
	case g.transitions <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

// Transitions delivers every transition in order. It is closed on unmount.
func (g *Gate) Transitions() <-chan Transition {
	return g.transitions
}

// Current returns the last transition that came from a good state.
func (g *Gate) Current() Transition {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Session returns the session value for the current state.
func (g *Gate) Session() Session {
	return Session{User: g.Current().User}
}

// Unmount unsubscribes and waits for the gate to stop. No transition is
// delivered after Unmount returns.
func (g *Gate) Unmount() {
	g.mu.Lock()
	if !g.mounted {
		g.mounted = true
		g.mu.Unlock()
		close(g.transitions)
		close(g.done)
		return
	}
	cancel := g.cancel
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-g.done
}
