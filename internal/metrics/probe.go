// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbeTotal counts finished probes by result ("ok" or the failure
	// reason) and tier.
	ProbeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mooncake_probe_total",
		Help: "Total number of throughput probes by result and tier",
	}, []string{"result", "tier"})

	// ProbeDuration tracks wall time of a whole probe (manifest legs included).
	ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mooncake_probe_duration_seconds",
		Help:    "Wall time of a throughput probe",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 4, 6},
	}, []string{"result"})

	// ProbeThroughput tracks measured segment throughput in MiB/s.
	ProbeThroughput = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mooncake_probe_throughput_mibps",
		Help:    "Measured segment throughput of successful probes in MiB/s",
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 4, 6, 8, 16, 32},
	})

	probeCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mooncake_probe_cache_lookups_total",
		Help: "Probe result cache lookups by outcome (hit, miss, shared)",
	}, []string{"outcome"})
)

// ObserveProbe records the outcome of one probe.
func ObserveProbe(result, tier string, throughput float64, d time.Duration) {
	ProbeTotal.WithLabelValues(result, tier).Inc()
	ProbeDuration.WithLabelValues(result).Observe(d.Seconds())
	if result == "ok" {
		ProbeThroughput.Observe(throughput)
	}
}

// IncProbeCache records a probe cache lookup outcome.
func IncProbeCache(outcome string) {
	probeCacheLookups.WithLabelValues(outcome).Inc()
}
