// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func captureLogs(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Configure(Config{Level: level, Output: &buf, Service: "test", Version: "v0"})
	t.Cleanup(func() { Configure(Config{}) })
	return &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestConfigure_BaseFields(t *testing.T) {
	buf := captureLogs(t, "info")

	l := WithComponent("probe")
	l.Info().Str(FieldEvent, "probe.ok").Msg("done")
	l.Debug().Msg("suppressed")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "test", lines[0]["service"])
	assert.Equal(t, "v0", lines[0]["version"])
	assert.Equal(t, "probe", lines[0][FieldComponent])
	assert.Equal(t, "probe.ok", lines[0][FieldEvent])
}

func TestContextIDs(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Empty(t, SessionIDFromContext(nil))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithSessionID(ctx, "sess-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "sess-1", SessionIDFromContext(ctx))
}

func TestWithContext_AddsCorrelation(t *testing.T) {
	buf := captureLogs(t, "info")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = ContextWithRequestID(ctx, "req-9")

	l := WithComponentFromContext(ctx, "api")
	l.Info().Msg("hello")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-9", lines[0][FieldRequestID])
	assert.Equal(t, traceID.String(), lines[0]["trace_id"])
	assert.Equal(t, spanID.String(), lines[0]["span_id"])
}

func TestMiddleware_LogsStatusWithoutQuery(t *testing.T) {
	buf := captureLogs(t, "info")

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/images?url=https%3A%2F%2Fsecret.example%2Fa.jpg", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-2"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotContains(t, buf.String(), "secret.example")
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "error", lines[0]["level"])
	assert.Equal(t, "http.request", lines[0][FieldEvent])
	assert.Equal(t, "/api/v1/images", lines[0]["path"])
	assert.EqualValues(t, http.StatusBadGateway, lines[0][FieldStatus])
	assert.EqualValues(t, len("upstream down"), lines[0][FieldBytes])
	assert.Equal(t, "req-2", lines[0][FieldRequestID])
}

func TestMiddleware_HealthzIsDebug(t *testing.T) {
	buf := captureLogs(t, "info")

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Empty(t, strings.TrimSpace(buf.String()))
}
