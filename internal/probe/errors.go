// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package probe

import (
	"context"
	"errors"
)

var (
	// ErrNoCandidates is returned for an empty candidate set.
	ErrNoCandidates = errors.New("probe: no candidate urls")
	// ErrManifestFetch covers network failures and non-200 answers for a
	// master or variant playlist.
	ErrManifestFetch = errors.New("probe: manifest fetch failed")
	// ErrManifestStructure means no variant or segment could be resolved.
	ErrManifestStructure = errors.New("probe: manifest has no usable reference")
	// ErrSegmentFetch covers the byte-range request.
	ErrSegmentFetch = errors.New("probe: segment fetch failed")
	// ErrProbeTimeout means the shared time budget ran out.
	ErrProbeTimeout = errors.New("probe: timeout")
	// ErrInvalidSample means zero bytes or zero elapsed time.
	ErrInvalidSample = errors.New("probe: invalid sample")
)

// Stable failure reasons carried in Result.Reason.
const (
	ReasonNoCandidates      = "no_candidates"
	ReasonManifestFetch     = "manifest_fetch"
	ReasonManifestStructure = "manifest_structure"
	ReasonSegmentFetch      = "segment_fetch"
	ReasonTimeout           = "timeout"
	ReasonCanceled          = "canceled"
	ReasonInvalidSample     = "invalid_sample"
	ReasonInternal          = "internal"
)

// ReasonFor maps an error returned by a probe leg to its stable reason.
// Deadline and cancellation win over the leg's own class.
func ReasonFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProbeTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, ErrNoCandidates):
		return ReasonNoCandidates
	case errors.Is(err, ErrManifestFetch):
		return ReasonManifestFetch
	case errors.Is(err, ErrManifestStructure):
		return ReasonManifestStructure
	case errors.Is(err, ErrSegmentFetch):
		return ReasonSegmentFetch
	case errors.Is(err, ErrInvalidSample):
		return ReasonInvalidSample
	default:
		return ReasonInternal
	}
}
