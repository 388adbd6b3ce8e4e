// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package playback drives one stream through a streaming engine (or the
// sink's native support) as an explicit state machine over engine events.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/mooncake/internal/fsm"
	"github.com/ManuGH/mooncake/internal/log"
	"github.com/ManuGH/mooncake/internal/metrics"
	platformnet "github.com/ManuGH/mooncake/internal/platform/net"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateIdle            State = "idle"
	StateAttaching       State = "attaching"
	StateManifestLoading State = "manifest_loading"
	StatePlaying         State = "playing"
	StateRecovering      State = "recovering"
	StateFatal           State = "fatal"
)

// IsTerminal reports whether no further engine event can leave s.
func (s State) IsTerminal() bool { return s == StateFatal }

// Event is an input of the session state machine.
type Event string

const (
	EvStart          Event = "start"
	EvStartNative    Event = "start_native"
	EvAttached       Event = "attached"
	EvManifestParsed Event = "manifest_parsed"
	EvRecovered      Event = "recovered"
	EvNetworkError   Event = "network_error"
	EvMediaError     Event = "media_error"
	EvFatalError     Event = "fatal_error"
	EvTeardown       Event = "teardown"
)

const (
	MessageUnsupported = "HLS is not supported"
	MessageLoadFailed  = "Failed to load video"
)

// DefaultMaxRecoveries bounds consecutive recoveries without reaching playing.
const DefaultMaxRecoveries = 3

var (
	ErrUnsupported       = errors.New("playback: HLS is not supported")
	ErrRecoveryExhausted = errors.New("playback: recovery attempts exhausted")
	ErrAlreadyStarted    = errors.New("playback: session already started")
	ErrClosed            = errors.New("playback: session torn down")
	ErrNoLauncher        = errors.New("playback: no external launcher configured")
	ErrEmptySource       = errors.New("playback: empty source url")
	errEngineUnavailable = errors.New("playback: engine factory returned nil")
)

// Failure is the user-facing outcome of a fatal session: a message and the
// raw source URL to hand to the escape hatch.
type Failure struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// Options configures a Session.
type Options struct {
	ID            string // generated when empty
	MaxRecoveries int    // DefaultMaxRecoveries when <= 0
	Launcher      Launcher
	Logger        *zerolog.Logger
	// OnTransition is called after every committed transition.
	OnTransition func(from, to State, ev Event)
}

// Session is one playback attempt of one source URL.
type Session struct {
	id            string
	sourceURL     string
	sink          Sink
	factory       EngineFactory
	launcher      Launcher
	maxRecoveries int
	logger        zerolog.Logger
	machine       *fsm.Machine[State, Event]

	// opMu serialises Start, engine events and teardown.
	opMu sync.Mutex

	mu         sync.Mutex
	engine     Engine
	native     bool
	started    bool
	closed     bool
	recoveries int
	failure    *Failure
	lastErr    error
	pumpCancel context.CancelFunc
	pumpDone   chan struct{}
}

// NewSession builds an idle session for sourceURL.
func NewSession(sourceURL string, sink Sink, factory EngineFactory, opts Options) (*Session, error) {
	if sourceURL == "" {
		return nil, ErrEmptySource
	}
	if sink == nil {
		return nil, errors.New("playback: nil sink")
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	maxRec := opts.MaxRecoveries
	if maxRec <= 0 {
		maxRec = DefaultMaxRecoveries
	}
	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = log.WithComponent("playback")
	}

	s := &Session{
		id:            id,
		sourceURL:     sourceURL,
		sink:          sink,
		factory:       factory,
		launcher:      opts.Launcher,
		maxRecoveries: maxRec,
		logger: logger.With().
			Str(log.FieldSessionID, id).
			Str(log.FieldSourceURL, platformnet.SanitizeURL(sourceURL)).
			Logger(),
	}

	m, err := fsm.New(StateIdle, s.transitions())
	if err != nil {
		return nil, fmt.Errorf("playback: build state machine: %w", err)
	}
	m.Observe(func(from, to State, ev Event) {
		metrics.RecordPlaybackTransition(string(from), string(to), string(ev))
		s.logger.Info().
			Str(log.FieldEvent, "playback.transition").
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(to)).
			Str("trigger", string(ev)).
			Msg("playback state changed")
	})
	if opts.OnTransition != nil {
		m.Observe(opts.OnTransition)
	}
	s.machine = m
	return s, nil
}

func (s *Session) transitions() []fsm.Transition[State, Event] {
	table := []fsm.Transition[State, Event]{
		{From: StateIdle, Event: EvStart, To: StateAttaching, Action: s.attach},
		{From: StateIdle, Event: EvStartNative, To: StatePlaying, Action: s.playNative},
		{From: StateAttaching, Event: EvAttached, To: StateManifestLoading, Action: s.loadSource},
		{From: StateManifestLoading, Event: EvManifestParsed, To: StatePlaying, Action: s.play},
		{From: StateRecovering, Event: EvRecovered, To: StatePlaying, Action: s.resume},
		{From: StateRecovering, Event: EvManifestParsed, To: StatePlaying, Action: s.resume},
	}
	for _, from := range []State{StateManifestLoading, StatePlaying, StateRecovering} {
		table = append(table,
			fsm.Transition[State, Event]{From: from, Event: EvNetworkError, To: StateRecovering, Guard: s.recoveryBudget, Action: s.recoverNetwork},
			fsm.Transition[State, Event]{From: from, Event: EvMediaError, To: StateRecovering, Guard: s.recoveryBudget, Action: s.recoverMedia},
		)
	}
	for _, from := range []State{StateIdle, StateAttaching, StateManifestLoading, StatePlaying, StateRecovering} {
		table = append(table, fsm.Transition[State, Event]{From: from, Event: EvFatalError, To: StateFatal, Action: s.release})
	}
	return append(table, fsm.Transition[State, Event]{From: fsm.Any[State](), Event: EvTeardown, To: StateIdle, Action: s.release})
}

func (s *Session) ID() string        { return s.id }
func (s *Session) SourceURL() string { return s.sourceURL }
func (s *Session) State() State      { return s.machine.State() }

// Native reports whether the session plays through the sink's native support.
func (s *Session) Native() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.native
}

// LastError returns the most recent engine or action error, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Failure returns the surfaced failure once the session is fatal.
func (s *Session) Failure() (Failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		return Failure{}, false
	}
	return *s.failure, true
}

// OpenExternally hands the raw source URL to the launcher.
func (s *Session) OpenExternally() error {
	if s.launcher == nil {
		return ErrNoLauncher
	}
	s.logger.Info().Str(log.FieldEvent, "playback.open_external").Msg("opening stream in external viewer")
	return s.launcher.Open(s.sourceURL)
}

// Start begins playback: natively when the sink can play HLS itself,
// otherwise through a new engine. A failed start leaves the session fatal
// and returns the cause.
func (s *Session) Start(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()
	metrics.AddActivePlayback(1)

	var ev Event
	switch {
	case s.sink.CanPlayNative(HLSMimeType):
		s.mu.Lock()
		s.native = true
		s.mu.Unlock()
		ev = EvStartNative
	case s.factory != nil && s.factory.Supported():
		ev = EvStart
	default:
		s.fail(ctx, MessageUnsupported, ErrUnsupported)
		return ErrUnsupported
	}

	if _, err := s.machine.Fire(ctx, ev); err != nil {
		s.fail(ctx, MessageLoadFailed, err)
		return err
	}
	return nil
}

// Handle feeds one engine event into the state machine. The event pump calls
// it for every engine event; tests may call it directly.
func (s *Session) Handle(ctx context.Context, ev EngineEvent) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	switch ev.Kind {
	case EventAttached:
		s.fire(ctx, EvAttached)
	case EventManifestParsed:
		s.fire(ctx, EvManifestParsed)
	case EventRecovered:
		s.fire(ctx, EvRecovered)
	case EventError:
		s.handleError(ctx, ev.Err)
	default:
		s.logger.Warn().Str(log.FieldEvent, "playback.unknown_event").Str("kind", string(ev.Kind)).Msg("ignoring unknown engine event")
	}
}

func (s *Session) handleError(ctx context.Context, e *EngineError) {
	if e == nil {
		s.logger.Warn().Str(log.FieldEvent, "playback.engine_error").Msg("engine reported an error without details")
		return
	}
	s.setLastErr(e)

	logEv := s.logger.Warn()
	if e.Fatal {
		logEv = s.logger.Error()
	}
	logEv.Str(log.FieldEvent, "playback.engine_error").
		Str("type", string(e.Type)).
		Str("details", e.Details).
		Bool("fatal", e.Fatal).
		Msg("engine error")
	if !e.Fatal {
		return
	}

	switch e.Type {
	case ErrorNetwork:
		s.fire(ctx, EvNetworkError)
	case ErrorMedia:
		s.fire(ctx, EvMediaError)
	default:
		s.fail(ctx, MessageLoadFailed, e)
	}
}

// fire applies ev. Unknown edges are logged and ignored; a rejected guard or
// failed action converts the session to fatal.
func (s *Session) fire(ctx context.Context, ev Event) {
	_, err := s.machine.Fire(ctx, ev)
	if err == nil {
		return
	}
	if errors.Is(err, fsm.ErrInvalidTransition) {
		s.logger.Debug().Err(err).Str(log.FieldEvent, "playback.ignored_event").Msg("event not valid in current state")
		return
	}
	s.fail(ctx, MessageLoadFailed, err)
}

func (s *Session) fail(ctx context.Context, message string, cause error) {
	s.mu.Lock()
	if s.failure == nil {
		s.failure = &Failure{Message: message, URL: s.sourceURL}
	}
	s.lastErr = cause
	s.mu.Unlock()

	if _, err := s.machine.Fire(ctx, EvFatalError); err != nil {
		s.logger.Debug().Err(err).Msg("fatal transition not applied")
		return
	}
	s.logger.Error().Err(cause).Str(log.FieldEvent, "playback.fatal").Str(log.FieldReason, message).Msg("playback failed")
}

func (s *Session) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Teardown stops the event pump, destroys the engine and resets the sink.
// It returns once no engine resource is held. Safe to call more than once.
func (s *Session) Teardown() {
	s.stopPump()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	if _, err := s.machine.Fire(context.Background(), EvTeardown); err != nil {
		s.logger.Warn().Err(err).Msg("teardown transition failed")
	}
	if started {
		metrics.AddActivePlayback(-1)
	}
}

// Actions. They run with opMu held.

func (s *Session) attach(_ context.Context, _, _ State, _ Event) error {
	eng := s.factory.New()
	if eng == nil {
		return errEngineUnavailable
	}
	if err := eng.Attach(s.sink); err != nil {
		eng.Destroy()
		return fmt.Errorf("attach engine: %w", err)
	}
	s.mu.Lock()
	s.engine = eng
	s.mu.Unlock()
	s.startPump(eng.Events())
	return nil
}

func (s *Session) loadSource(_ context.Context, _, _ State, _ Event) error {
	eng := s.currentEngine()
	if eng == nil {
		return errEngineUnavailable
	}
	if err := eng.LoadSource(s.sourceURL); err != nil {
		return fmt.Errorf("load source: %w", err)
	}
	return nil
}

func (s *Session) play(_ context.Context, _, _ State, _ Event) error {
	s.resetRecoveries()
	if err := s.sink.Play(); err != nil {
		s.logger.Info().Err(err).Str(log.FieldEvent, "playback.autoplay_prevented").Msg("autoplay prevented")
	}
	return nil
}

func (s *Session) playNative(_ context.Context, _, _ State, _ Event) error {
	if err := s.sink.SetSource(s.sourceURL); err != nil {
		return fmt.Errorf("native source: %w", err)
	}
	if err := s.sink.Play(); err != nil {
		s.logger.Info().Err(err).Str(log.FieldEvent, "playback.autoplay_prevented").Msg("autoplay prevented")
	}
	return nil
}

func (s *Session) resume(_ context.Context, _, _ State, _ Event) error {
	s.resetRecoveries()
	return nil
}

func (s *Session) recoveryBudget(_ context.Context, _ State, _ Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recoveries >= s.maxRecoveries {
		return fmt.Errorf("%w (%d)", ErrRecoveryExhausted, s.maxRecoveries)
	}
	return nil
}

func (s *Session) recoverNetwork(_ context.Context, _, _ State, _ Event) error {
	return s.attemptRecovery("network", func(e Engine) error { return e.RecoverNetwork() })
}

func (s *Session) recoverMedia(_ context.Context, _, _ State, _ Event) error {
	return s.attemptRecovery("media", func(e Engine) error { return e.RecoverMedia() })
}

func (s *Session) attemptRecovery(kind string, call func(Engine) error) error {
	eng := s.currentEngine()
	if eng == nil {
		return errEngineUnavailable
	}
	s.mu.Lock()
	s.recoveries++
	attempt := s.recoveries
	s.mu.Unlock()

	s.logger.Info().Str(log.FieldEvent, "playback.recover").Str("kind", kind).Int("attempt", attempt).Msg("attempting recovery")
	err := call(eng)
	metrics.RecordPlaybackRecovery(kind, err == nil)
	if err != nil {
		return fmt.Errorf("recover %s: %w", kind, err)
	}
	return nil
}

// release runs on the way into fatal and on teardown: no decoder or partial
// frame survives either.
func (s *Session) release(_ context.Context, _, _ State, _ Event) error {
	s.destroyEngine()
	s.sink.Reset()
	return nil
}

func (s *Session) currentEngine() Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *Session) resetRecoveries() {
	s.mu.Lock()
	s.recoveries = 0
	s.mu.Unlock()
}

func (s *Session) destroyEngine() {
	s.mu.Lock()
	eng := s.engine
	s.engine = nil
	s.mu.Unlock()
	if eng != nil {
		eng.Destroy()
	}
}

// startPump forwards engine events into Handle until stopped, the channel
// closes, or the session turns terminal.
func (s *Session) startPump(events <-chan EngineEvent) {
	if events == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.pumpCancel = cancel
	s.pumpDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.Handle(ctx, ev)
				if s.State().IsTerminal() {
					return
				}
			}
		}
	}()
}

func (s *Session) stopPump() {
	s.mu.Lock()
	cancel, done := s.pumpCancel, s.pumpDone
	s.pumpCancel, s.pumpDone = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
