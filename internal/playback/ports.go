// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import "fmt"

// HLSMimeType is the MIME type probed on the sink for native HLS support.
const HLSMimeType = "application/vnd.apple.mpegurl"

// EventKind enumerates the events a streaming engine emits.
type EventKind string

const (
	EventAttached       EventKind = "attached"
	EventManifestParsed EventKind = "manifest_parsed"
	EventRecovered      EventKind = "recovered"
	EventError          EventKind = "error"
)

// ErrorType classifies engine errors.
type ErrorType string

const (
	ErrorNetwork ErrorType = "network"
	ErrorMedia   ErrorType = "media"
	ErrorOther   ErrorType = "other"
)

// EngineError is the payload of an EventError.
type EngineError struct {
	Type    ErrorType
	Details string
	Fatal   bool
}

func (e *EngineError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("fatal %s error: %s", e.Type, e.Details)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Details)
}

// EngineEvent is one message from an engine. Err is set for EventError.
type EngineEvent struct {
	Kind EventKind
	Err  *EngineError
}

// Engine is a streaming playback engine driving a Sink.
type Engine interface {
	Attach(sink Sink) error
	LoadSource(url string) error
	RecoverNetwork() error
	RecoverMedia() error
	// Destroy releases decoder resources. It must return only once the
	// engine no longer touches the sink.
	Destroy()
	Events() <-chan EngineEvent
}

// Sink is the video output surface.
type Sink interface {
	CanPlayNative(mime string) bool
	SetSource(url string) error
	Play() error
	Reset()
}

// EngineFactory creates engines. A nil factory means no engine is available.
type EngineFactory interface {
	Supported() bool
	New() Engine
}

// Launcher opens a URL outside the player.
type Launcher interface {
	Open(url string) error
}
