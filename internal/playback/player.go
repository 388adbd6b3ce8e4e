// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"sync"
)

// Player owns the single session of one mounted output sink.
type Player struct {
	sink    Sink
	factory EngineFactory
	opts    Options

	mu      sync.Mutex
	current *Session
}

// NewPlayer returns a player bound to sink. opts is used as a template for
// every session; its ID is ignored.
func NewPlayer(sink Sink, factory EngineFactory, opts Options) *Player {
	opts.ID = ""
	return &Player{sink: sink, factory: factory, opts: opts}
}

// SetSource tears down the current session, waiting until its engine is
// destroyed, then starts a session for url. The new session is returned even
// when it failed to start, so callers can read its Failure.
func (p *Player) SetSource(ctx context.Context, url string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current.Teardown()
		p.current = nil
	}
	if url == "" {
		return nil, ErrEmptySource
	}

	sess, err := NewSession(url, p.sink, p.factory, p.opts)
	if err != nil {
		return nil, err
	}
	p.current = sess
	return sess, sess.Start(ctx)
}

// Current returns the active session, or nil.
func (p *Player) Current() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Close tears down the active session.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Teardown()
		p.current = nil
	}
}
