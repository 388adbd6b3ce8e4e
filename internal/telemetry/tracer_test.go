// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// restoreGlobals puts the global provider and propagator back after a test
// that installs its own.
func restoreGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	restoreGlobals(t)
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	return recorder
}

func TestNewProvider_DisabledInstallsNoop(t *testing.T) {
	restoreGlobals(t)

	p, err := NewProvider(context.Background(), Config{ServiceName: "mooncake", ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, p.tp)

	_, span := Tracer("mooncake/probe").Start(context.Background(), "probe")
	assert.False(t, span.IsRecording())
	span.End()

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_RejectsUnknownExporter(t *testing.T) {
	restoreGlobals(t)

	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "zipkin"})
	require.Error(t, err)
	assert.Equal(t, "unsupported exporter type: zipkin (supported: grpc, http)", err.Error())
}

func TestNewProvider_HTTPExporter(t *testing.T) {
	restoreGlobals(t)

	tests := []struct {
		name      string
		rate      float64
		recording bool
	}{
		{name: "always", rate: 1, recording: true},
		{name: "never", rate: 0, recording: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(context.Background(), Config{
				Enabled:        true,
				ServiceName:    "mooncake",
				ServiceVersion: "test",
				ExporterType:   "http",
				Endpoint:       "127.0.0.1:4318",
				SamplingRate:   tt.rate,
			})
			require.NoError(t, err)
			require.NotNil(t, p.tp)

			// left open so nothing is queued for the absent collector
			_, span := Tracer("mooncake/test").Start(context.Background(), "imagecache.fetch")
			assert.Equal(t, tt.recording, span.IsRecording())

			assert.NoError(t, p.Shutdown(context.Background()))
		})
	}

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")
}

func TestStartSpan_ProbeAttributes(t *testing.T) {
	recorder := recordSpans(t)

	_, span := StartSpan(context.Background(), "mooncake/probe", "probe",
		ProbeAttributes("https://cdn.example/a.m3u8", "medium", "", 3.2, 512*1024)...)
	EndSpan(span, nil)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "probe", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range ended[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "medium", attrs[ProbeTierKey].AsString())
	assert.InDelta(t, 3.2, attrs[ProbeThroughputKey].AsFloat64(), 1e-9)
	assert.EqualValues(t, 512*1024, attrs[ProbeBytesKey].AsInt64())
	_, hasReason := attrs[ProbeReasonKey]
	assert.False(t, hasReason)
}

func TestEndSpan_RecordsError(t *testing.T) {
	recorder := recordSpans(t)

	_, span := StartSpan(context.Background(), "mooncake/catalog", "catalog.item",
		append(CatalogAttributes("item", "m1", 0), ErrorAttributes("upstream")...)...)
	EndSpan(span, errors.New("catalog: upstream unavailable"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "catalog: upstream unavailable", ended[0].Status().Description)
	require.NotEmpty(t, ended[0].Events())
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestProvider_ConcurrentNoopShutdown(t *testing.T) {
	p := &Provider{}
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Shutdown(context.Background()))
		}()
	}
	wg.Wait()
}
