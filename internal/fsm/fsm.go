// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package fsm is a small strict finite-state machine runner.
// Unknown (state, event) pairs are errors; they never move the machine.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidTransition is returned when no edge exists for the current
	// state and the fired event.
	ErrInvalidTransition = errors.New("fsm: invalid transition")
	// ErrConcurrentTransition is returned when another Fire moved the machine
	// while a guard or action was running.
	ErrConcurrentTransition = errors.New("fsm: concurrent transition")
	// ErrDuplicateTransition is returned by New for a repeated (From, Event).
	ErrDuplicateTransition = errors.New("fsm: duplicate transition")
)

// Transition describes a single edge.
// Guard may reject the transition; Action performs side effects. Both run
// without the machine lock held. A failing Action leaves the state unchanged.
type Transition[S ~string, E ~string] struct {
	From   S
	Event  E
	To     S
	Guard  func(ctx context.Context, from S, event E) error
	Action func(ctx context.Context, from, to S, event E) error
}

// Any returns the wildcard source state. An edge whose From is Any applies to
// every state that has no explicit edge for the same event.
func Any[S ~string]() S {
	var zero S
	return zero
}

// Observer is notified after each committed transition, in commit order.
type Observer[S ~string, E ~string] func(from, to S, event E)

type edge[S ~string, E ~string] struct {
	from  S
	event E
}

// Machine runs a transition table.
type Machine[S ~string, E ~string] struct {
	mu        sync.Mutex
	state     S
	index     map[edge[S, E]]Transition[S, E]
	observers []Observer[S, E]
}

// New builds a machine in the initial state.
func New[S ~string, E ~string](initial S, transitions []Transition[S, E]) (*Machine[S, E], error) {
	idx := make(map[edge[S, E]]Transition[S, E], len(transitions))
	for _, t := range transitions {
		k := edge[S, E]{from: t.From, event: t.Event}
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("%w: state=%q event=%q", ErrDuplicateTransition, t.From, t.Event)
		}
		idx[k] = t
	}
	return &Machine[S, E]{state: initial, index: idx}, nil
}

// Observe registers fn for committed transitions.
func (m *Machine[S, E]) Observe(fn Observer[S, E]) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Can reports whether event has an edge from the current state. Guards are
// not evaluated.
func (m *Machine[S, E]) Can(event E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(m.state, event)
	return ok
}

func (m *Machine[S, E]) lookup(from S, event E) (Transition[S, E], bool) {
	if t, ok := m.index[edge[S, E]{from: from, event: event}]; ok {
		return t, true
	}
	t, ok := m.index[edge[S, E]{from: Any[S](), event: event}]
	return t, ok
}

// Fire applies event and returns the resulting state. On any error the
// returned state is the one the machine is in.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) (S, error) {
	m.mu.Lock()
	from := m.state
	t, ok := m.lookup(from, event)
	m.mu.Unlock()
	if !ok {
		return from, fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, from, event)
	}

	to := t.To
	if t.Guard != nil {
		if err := t.Guard(ctx, from, event); err != nil {
			return from, err
		}
	}
	if t.Action != nil {
		if err := t.Action(ctx, from, to, event); err != nil {
			return m.State(), err
		}
	}

	m.mu.Lock()
	if m.state != from {
		cur := m.state
		m.mu.Unlock()
		return cur, fmt.Errorf("%w: from=%s cur=%s event=%s", ErrConcurrentTransition, from, cur, event)
	}
	m.state = to
	observers := append([]Observer[S, E](nil), m.observers...)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(from, to, event)
	}
	return to, nil
}
