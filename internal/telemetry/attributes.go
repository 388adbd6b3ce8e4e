// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by mooncake spans.
const (
	// Probe
	ProbeURLKey        = "probe.url"
	ProbeSegmentURLKey = "probe.segment_url"
	ProbeTierKey       = "probe.tier"
	ProbeThroughputKey = "probe.throughput_mibps"
	ProbeBytesKey      = "probe.bytes"
	ProbeReasonKey     = "probe.reason"
	ProbeCandidatesKey = "probe.candidates"

	// Image cache / proxy
	ImageURLKey         = "image.url"
	ImageContentTypeKey = "image.content_type"
	ImageBytesKey       = "image.bytes"
	ImageOutcomeKey     = "image.outcome"

	// Catalog
	CatalogOperationKey = "catalog.operation"
	CatalogMediaIDKey   = "catalog.mc_id"
	CatalogItemsKey     = "catalog.items"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// ProbeAttributes describes a finished probe.
func ProbeAttributes(url, tier, reason string, throughput float64, bytes int64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(ProbeURLKey, url),
		attribute.String(ProbeTierKey, tier),
		attribute.Float64(ProbeThroughputKey, throughput),
		attribute.Int64(ProbeBytesKey, bytes),
	}
	if reason != "" {
		attrs = append(attrs, attribute.String(ProbeReasonKey, reason))
	}
	return attrs
}

// ImageAttributes describes an image fetch. Empty values are omitted.
func ImageAttributes(url, contentType string, size int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if url != "" {
		attrs = append(attrs, attribute.String(ImageURLKey, url))
	}
	if contentType != "" {
		attrs = append(attrs, attribute.String(ImageContentTypeKey, contentType))
	}
	if size > 0 {
		attrs = append(attrs, attribute.Int(ImageBytesKey, size))
	}
	return attrs
}

// CatalogAttributes describes a catalog call.
func CatalogAttributes(operation, mediaID string, items int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(CatalogOperationKey, operation),
		attribute.Int(CatalogItemsKey, items),
	}
	if mediaID != "" {
		attrs = append(attrs, attribute.String(CatalogMediaIDKey, mediaID))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
