// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state string
type event string

const (
	sOff  state = "off"
	sOn   state = "on"
	sDead state = "dead"

	eToggleOn  event = "on"
	eToggleOff event = "off"
	eKill      event = "kill"
)

func newSwitch(t *testing.T, extra ...Transition[state, event]) *Machine[state, event] {
	t.Helper()
	table := []Transition[state, event]{
		{From: sOff, Event: eToggleOn, To: sOn},
		{From: sOn, Event: eToggleOff, To: sOff},
		{From: Any[state](), Event: eKill, To: sDead},
	}
	m, err := New(sOff, append(table, extra...))
	require.NoError(t, err)
	return m
}

func TestFire_FollowsTable(t *testing.T) {
	m := newSwitch(t)
	ctx := context.Background()

	got, err := m.Fire(ctx, eToggleOn)
	require.NoError(t, err)
	assert.Equal(t, sOn, got)

	got, err = m.Fire(ctx, eToggleOff)
	require.NoError(t, err)
	assert.Equal(t, sOff, got)
	assert.Equal(t, sOff, m.State())
}

func TestFire_UnknownEdgeLeavesState(t *testing.T) {
	m := newSwitch(t)
	got, err := m.Fire(context.Background(), eToggleOff)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, sOff, got)
	assert.False(t, m.Can(eToggleOff))
	assert.True(t, m.Can(eToggleOn))
}

func TestFire_WildcardAndExplicitPrecedence(t *testing.T) {
	m := newSwitch(t, Transition[state, event]{From: sDead, Event: eKill, To: sDead})
	ctx := context.Background()

	got, err := m.Fire(ctx, eKill)
	require.NoError(t, err)
	assert.Equal(t, sDead, got)

	// dead has no toggle edges
	_, err = m.Fire(ctx, eToggleOn)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New(sOff, []Transition[state, event]{
		{From: sOff, Event: eToggleOn, To: sOn},
		{From: sOff, Event: eToggleOn, To: sDead},
	})
	assert.ErrorIs(t, err, ErrDuplicateTransition)
}

func TestFire_GuardAndActionErrors(t *testing.T) {
	boom := errors.New("boom")
	m, err := New(sOff, []Transition[state, event]{
		{From: sOff, Event: eToggleOn, To: sOn, Guard: func(context.Context, state, event) error { return boom }},
		{From: sOff, Event: eKill, To: sDead, Action: func(context.Context, state, state, event) error { return boom }},
	})
	require.NoError(t, err)

	got, err := m.Fire(context.Background(), eToggleOn)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, sOff, got)

	got, err = m.Fire(context.Background(), eKill)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, sOff, got)
}

func TestFire_ActionFiringNestedEventIsDetected(t *testing.T) {
	var m *Machine[state, event]
	table := []Transition[state, event]{
		{From: sOff, Event: eToggleOn, To: sOn, Action: func(ctx context.Context, _, _ state, _ event) error {
			_, err := m.Fire(ctx, eKill)
			return err
		}},
		{From: Any[state](), Event: eKill, To: sDead},
	}
	var err error
	m, err = New(sOff, table)
	require.NoError(t, err)

	got, err := m.Fire(context.Background(), eToggleOn)
	assert.ErrorIs(t, err, ErrConcurrentTransition)
	assert.Equal(t, sDead, got)
}

func TestObserve_ReceivesCommittedTransitions(t *testing.T) {
	m := newSwitch(t)
	type step struct {
		from, to state
		ev       event
	}
	var seen []step
	m.Observe(func(from, to state, ev event) { seen = append(seen, step{from, to, ev}) })

	ctx := context.Background()
	_, _ = m.Fire(ctx, eToggleOn)
	_, _ = m.Fire(ctx, eToggleOn) // invalid, not observed
	_, _ = m.Fire(ctx, eKill)

	assert.Equal(t, []step{
		{sOff, sOn, eToggleOn},
		{sOn, sDead, eKill},
	}, seen)
}
