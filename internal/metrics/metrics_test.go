// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveProbe_ExposesSeries(t *testing.T) {
	ObserveProbe("ok", "fast", 5.5, 120*time.Millisecond)
	ObserveProbe("timeout", "unknown", 0, 6*time.Second)

	body := scrape(t)
	assert.Contains(t, body, `mooncake_probe_total{result="ok",tier="fast"}`)
	assert.Contains(t, body, `mooncake_probe_total{result="timeout",tier="unknown"}`)
	assert.Contains(t, body, "mooncake_probe_throughput_mibps_bucket")
}

func TestObserveProbe_FailedSkipsThroughput(t *testing.T) {
	var before dto.Metric
	require.NoError(t, ProbeThroughput.Write(&before))

	ObserveProbe("segment_fetch", "unknown", 0, time.Second)

	var after dto.Metric
	require.NoError(t, ProbeThroughput.Write(&after))
	assert.Equal(t, before.GetHistogram().GetSampleCount(), after.GetHistogram().GetSampleCount())
}

func TestSetCircuitBreakerState_OneHot(t *testing.T) {
	SetCircuitBreakerState("img.example", "open")

	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("img.example", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("img.example", "closed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("img.example", "half-open")))
}

func TestAddImageHandle_Balances(t *testing.T) {
	before := testutil.ToFloat64(imageLiveHandles)
	beforeBytes := testutil.ToFloat64(imageBytes)

	AddImageHandle(1, 100)
	AddImageHandle(1, 50)
	AddImageHandle(-1, 100)

	assert.Equal(t, before+1, testutil.ToFloat64(imageLiveHandles))
	assert.Equal(t, beforeBytes+50, testutil.ToFloat64(imageBytes))
}

func TestRecordPlaybackTransition_Counts(t *testing.T) {
	c := playbackTransitions.WithLabelValues("recovering", "playing", "recovered")
	before := testutil.ToFloat64(c)
	RecordPlaybackTransition("recovering", "playing", "recovered")
	RecordPlaybackTransition("recovering", "playing", "recovered")
	assert.Equal(t, before+2, testutil.ToFloat64(c))
}

func TestObserveHTTPRequest_UnmatchedRoute(t *testing.T) {
	ObserveHTTPRequest("", "GET", 404, time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequests.WithLabelValues("unmatched", "GET", "404")), 1.0)
}
