// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	imageLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mooncake_imagecache_lookups_total",
		Help: "Image cache lookups by outcome (hit, wait, miss, failed)",
	}, []string{"outcome"})

	imageFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mooncake_imagecache_fetch_total",
		Help: "Image fetches through the proxy collaborator by result",
	}, []string{"result"})

	imageLiveHandles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mooncake_imagecache_live_handles",
		Help: "Number of image handles currently holding decoded bytes",
	})

	imageBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mooncake_imagecache_bytes",
		Help: "Bytes held by live image handles",
	})
)

// IncImageLookup records a cache lookup outcome.
func IncImageLookup(outcome string) {
	imageLookups.WithLabelValues(outcome).Inc()
}

// IncImageFetch records a fetch result ("ready", "fetch_error", "decode_error").
func IncImageFetch(result string) {
	imageFetches.WithLabelValues(result).Inc()
}

// AddImageHandle adjusts the live handle gauges. delta is +1 on allocation
// and -1 on release.
func AddImageHandle(delta int, size int) {
	imageLiveHandles.Add(float64(delta))
	imageBytes.Add(float64(delta * size))
}
