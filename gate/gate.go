// Package gate provides boolean preconditions that must hold before a
// localized element may request a translation.
//
// A Gate is observable: callers read its state with Open and register for
// changes with Notify. Independent gates (visibility, content readiness) are
// combined with All and awaited with Wait.
package gate

import (
	"context"
	"sync"
)

// Gate is an observable boolean precondition.
type Gate interface {
	// Open reports whether the precondition currently holds.
	Open() bool
	// Notify registers fn to be called after every state change. fn must not
	// block. The returned function unregisters it.
	Notify(fn func()) (cancel func())
}

// Wait blocks until every gate is open or ctx is done.
func Wait(ctx context.Context, gates ...Gate) error {
	g := All(gates...)
	if g.Open() {
		return nil
	}

	changed := make(chan struct{}, 1)
	cancel := g.Notify(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		if g.Open() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

type allGate []Gate

// All returns a Gate that is open only when every non-nil gate is open.
// With no gates it is always open.
func All(gates ...Gate) Gate {
	out := make(allGate, 0, len(gates))
	for _, g := range gates {
		if g != nil {
			out = append(out, g)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (a allGate) Open() bool {
	for _, g := range a {
		if !g.Open() {
			return false
		}
	}
	return true
}

func (a allGate) Notify(fn func()) func() {
	cancels := make([]func(), 0, len(a))
	for _, g := range a {
		cancels = append(cancels, g.Notify(fn))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// Signal is a settable Gate. The zero value is closed and ready to use.
type Signal struct {
	mu        sync.Mutex
	open      bool
	nextID    int
	listeners map[int]func()
}

// NewSignal returns a Signal in the given initial state.
func NewSignal(open bool) *Signal {
	return &Signal{open: open}
}

// Open reports the current state.
func (s *Signal) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Set changes the state and notifies listeners if it differs.
func (s *Signal) Set(open bool) {
	s.mu.Lock()
	if s.open == open {
		s.mu.Unlock()
		return
	}
	s.open = open
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Notify registers fn for state changes.
func (s *Signal) Notify(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]func())
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

type constGate bool

// Always is a Gate that is permanently open.
var Always Gate = constGate(true)

func (c constGate) Open() bool { return bool(c) }

func (constGate) Notify(func()) func() { return func() {} }
