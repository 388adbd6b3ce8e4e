// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldMediaID   = "mc_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldHandle    = "handle"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Media / network fields
	FieldURL         = "url"
	FieldSourceURL   = "source_url"
	FieldSegmentURL  = "segment_url"
	FieldContentType = "content_type"
	FieldBytes       = "bytes"
	FieldDurationMS  = "duration_ms"
	FieldStatus      = "status"
	FieldTier        = "tier"
	FieldReason      = "reason"
)
