// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playbackTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mooncake_playback_transitions_total",
		Help: "Playback session state transitions",
	}, []string{"from", "to", "event"})

	playbackRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mooncake_playback_recoveries_total",
		Help: "Playback recovery attempts by kind (network, media) and result",
	}, []string{"kind", "result"})

	playbackActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mooncake_playback_sessions_active",
		Help: "Playback sessions that have started and not been torn down",
	})
)

// RecordPlaybackTransition records one committed transition.
func RecordPlaybackTransition(from, to, event string) {
	playbackTransitions.WithLabelValues(from, to, event).Inc()
}

// RecordPlaybackRecovery records a recovery attempt.
func RecordPlaybackRecovery(kind string, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	playbackRecoveries.WithLabelValues(kind, result).Inc()
}

// AddActivePlayback adjusts the active session gauge.
func AddActivePlayback(delta int) {
	playbackActive.Add(float64(delta))
}
