// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestProbeAttributes(t *testing.T) {
	got := attrMap(ProbeAttributes("https://h/m.m3u8", "slow", "", 0.5, 524288))
	assert.Equal(t, "https://h/m.m3u8", got[ProbeURLKey].AsString())
	assert.Equal(t, "slow", got[ProbeTierKey].AsString())
	assert.Equal(t, 0.5, got[ProbeThroughputKey].AsFloat64())
	assert.Equal(t, int64(524288), got[ProbeBytesKey].AsInt64())
	_, hasReason := got[ProbeReasonKey]
	assert.False(t, hasReason)

	failed := attrMap(ProbeAttributes("u", "unknown", "timeout", 0, 0))
	assert.Equal(t, "timeout", failed[ProbeReasonKey].AsString())
}

func TestImageAttributes_OmitsEmpty(t *testing.T) {
	assert.Empty(t, ImageAttributes("", "", 0))
	got := attrMap(ImageAttributes("https://img/a.jpg", "image/jpeg", 10))
	assert.Len(t, got, 3)
	assert.Equal(t, int64(10), got[ImageBytesKey].AsInt64())
}

func TestCatalogAttributes(t *testing.T) {
	got := attrMap(CatalogAttributes("item", "42", 1))
	assert.Equal(t, "item", got[CatalogOperationKey].AsString())
	assert.Equal(t, "42", got[CatalogMediaIDKey].AsString())
	assert.Len(t, CatalogAttributes("random", "", 12), 2)
}

func TestErrorAttributes(t *testing.T) {
	got := attrMap(ErrorAttributes("timeout"))
	assert.True(t, got[ErrorKey].AsBool())
	assert.Equal(t, "timeout", got[ErrorTypeKey].AsString())
}
