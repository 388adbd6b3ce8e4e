// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"fmt"
	"sync"
)

// callLog records calls across engines and sinks in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.snapshot() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeEngine struct {
	name   string
	log    *callLog
	events chan EngineEvent

	attachErr       error
	loadErr         error
	recoverNetErr   error
	recoverMediaErr error
}

func (e *fakeEngine) Attach(Sink) error {
	e.log.add("%s.attach", e.name)
	return e.attachErr
}

func (e *fakeEngine) LoadSource(url string) error {
	e.log.add("%s.load %s", e.name, url)
	return e.loadErr
}

func (e *fakeEngine) RecoverNetwork() error {
	e.log.add("%s.recover_network", e.name)
	return e.recoverNetErr
}

func (e *fakeEngine) RecoverMedia() error {
	e.log.add("%s.recover_media", e.name)
	return e.recoverMediaErr
}

func (e *fakeEngine) Destroy() { e.log.add("%s.destroy", e.name) }

func (e *fakeEngine) Events() <-chan EngineEvent { return e.events }

type fakeFactory struct {
	log       *callLog
	supported bool
	configure func(*fakeEngine)

	mu      sync.Mutex
	engines []*fakeEngine
}

func (f *fakeFactory) Supported() bool { return f.supported }

func (f *fakeFactory) New() Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &fakeEngine{
		name:   fmt.Sprintf("e%d", len(f.engines)+1),
		log:    f.log,
		events: make(chan EngineEvent, 16),
	}
	if f.configure != nil {
		f.configure(e)
	}
	f.engines = append(f.engines, e)
	return e
}

func (f *fakeFactory) engine(i int) *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines[i]
}

func (f *fakeFactory) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

type fakeSink struct {
	log          *callLog
	native       bool
	setSourceErr error
	playErr      error
}

func (s *fakeSink) CanPlayNative(mime string) bool { return s.native && mime == HLSMimeType }

func (s *fakeSink) SetSource(url string) error {
	s.log.add("sink.set_source %s", url)
	return s.setSourceErr
}

func (s *fakeSink) Play() error {
	s.log.add("sink.play")
	return s.playErr
}

func (s *fakeSink) Reset() { s.log.add("sink.reset") }

type fakeLauncher struct {
	opened []string
}

func (l *fakeLauncher) Open(url string) error {
	l.opened = append(l.opened, url)
	return nil
}
