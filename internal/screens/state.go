// Package screens holds the view models behind each screen of the library:
// the book list, favorites, detail, add and edit forms, search, profile,
// home statistics and the account forms.
//
// Every screen owns a State that moves through loading, ready, empty and
// error, and ends in closed when the screen is unmounted. Observers receive
// the latest state in order. Once a screen is closed, late results from
// calls that were already in flight are dropped.
package screens

import (
	"sync"
)

type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseEmpty   Phase = "empty"
	PhaseError   Phase = "error"
	PhaseClosed  Phase = "closed"
)

// Alert is a user-facing error message.
type Alert struct {
	Title        string `json:"title"`
	Message      string `json:"message"`
	NavigateBack bool   `json:"navigate_back,omitempty"`
}

// State is what a screen renders. On error Data keeps the last good value.
type State[T any] struct {
	Phase Phase  `json:"phase"`
	Data  T      `json:"data"`
	Alert *Alert `json:"alert,omitempty"`
}

// view stores one screen's state and fans it out to observers. Each
// observer channel holds at most one pending state; a newer state replaces
// an unread one.
type view[T any] struct {
	mu        sync.Mutex
	state     State[T]
	observers map[chan State[T]]struct{}
	closed    bool
}

func newView[T any](initial T) *view[T] {
	return &view[T]{
		state:     State[T]{Phase: PhaseLoading, Data: initial},
		observers: make(map[chan State[T]]struct{}),
	}
}

// State returns the current state.
func (v *view[T]) State() State[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Observe streams state changes starting with the current state. The
// channel is closed after the closed state or when stop is called.
func (v *view[T]) Observe() (updates <-chan State[T], stop func()) {
	ch := make(chan State[T], 1)

	v.mu.Lock()
	ch <- v.state
	if v.closed {
		close(ch)
		v.mu.Unlock()
		return ch, func() {}
	}
	v.observers[ch] = struct{}{}
	v.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if _, ok := v.observers[ch]; ok {
				delete(v.observers, ch)
				close(ch)
			}
		})
	}
}

// update applies fn and notifies observers. It reports false, without
// calling fn, once the view is closed.
func (v *view[T]) update(fn func(*State[T])) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	fn(&v.state)
	v.broadcast()
	return true
}

func (v *view[T]) ready(data T) bool {
	return v.update(func(s *State[T]) {
		s.Phase = PhaseReady
		s.Data = data
		s.Alert = nil
	})
}

func (v *view[T]) empty(data T) bool {
	return v.update(func(s *State[T]) {
		s.Phase = PhaseEmpty
		s.Data = data
		s.Alert = nil
	})
}

// fail moves to the error phase and keeps the previous data.
func (v *view[T]) fail(alert *Alert) bool {
	return v.update(func(s *State[T]) {
		s.Phase = PhaseError
		s.Alert = alert
	})
}

// alert shows a message without leaving the current phase. Forms use it for
// validation problems.
func (v *view[T]) alert(alert *Alert) bool {
	return v.update(func(s *State[T]) {
		s.Alert = alert
	})
}

// close moves to the terminal closed phase and releases observers.
func (v *view[T]) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.state.Phase = PhaseClosed
	v.state.Alert = nil
	v.broadcast()
	for ch := range v.observers {
		close(ch)
	}
	v.observers = make(map[chan State[T]]struct{})
}

func (v *view[T]) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

func (v *view[T]) broadcast() {
	for ch := range v.observers {
		select {
		case ch <- v.state:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		ch <- v.state
	}
}
