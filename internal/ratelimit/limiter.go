// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ratelimit paces outbound requests globally and per upstream host.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	rateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mooncake",
			Name:      "upstream_ratelimit_total",
			Help:      "Outbound requests checked against the upstream limiter by outcome",
		},
		[]string{"limit_type", "outcome"},
	)
)

// Config holds rate limiting configuration
type Config struct {
	// Global limits
	GlobalRate  rate.Limit // requests per second
	GlobalBurst int        // max burst size

	// Per-host limits
	PerHostRate  rate.Limit
	PerHostBurst int

	// Idle per-host limiters are dropped after this long
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		GlobalRate:  20,
		GlobalBurst: 40,

		PerHostRate:  5,
		PerHostBurst: 10,

		CleanupInterval: 5 * time.Minute,
	}
}

type hostLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter paces outbound requests.
type Limiter struct {
	config Config

	global  *rate.Limiter
	perHost map[string]*hostLimiter
	mu      sync.Mutex

	lastCleanup time.Time
	now         func() time.Time
}

// New creates a new limiter with the given config
func New(config Config) *Limiter {
	return &Limiter{
		config:      config,
		global:      rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perHost:     make(map[string]*hostLimiter),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow reports whether a request to host may proceed right now.
func (l *Limiter) Allow(host string) bool {
	if !l.global.Allow() {
		rateLimitWaits.WithLabelValues("global", "rejected").Inc()
		return false
	}
	if !l.hostLimiter(host).Allow() {
		rateLimitWaits.WithLabelValues("per_host", "rejected").Inc()
		return false
	}
	rateLimitWaits.WithLabelValues("global", "allowed").Inc()
	return true
}

// Wait blocks until a request to host may proceed or ctx ends.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	if err := l.global.Wait(ctx); err != nil {
		rateLimitWaits.WithLabelValues("global", "canceled").Inc()
		return fmt.Errorf("global rate limit: %w", err)
	}
	if err := l.hostLimiter(host).Wait(ctx); err != nil {
		rateLimitWaits.WithLabelValues("per_host", "canceled").Inc()
		return fmt.Errorf("host rate limit %s: %w", host, err)
	}
	rateLimitWaits.WithLabelValues("global", "allowed").Inc()
	return nil
}

func (l *Limiter) hostLimiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanupLocked(now)

	hl, exists := l.perHost[host]
	if !exists {
		hl = &hostLimiter{limiter: rate.NewLimiter(l.config.PerHostRate, l.config.PerHostBurst)}
		l.perHost[host] = hl
	}
	hl.lastSeen = now
	return hl.limiter
}

// cleanupLocked drops host limiters idle for a full interval.
func (l *Limiter) cleanupLocked(now time.Time) {
	if l.config.CleanupInterval <= 0 || now.Sub(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	for host, hl := range l.perHost {
		if now.Sub(hl.lastSeen) >= l.config.CleanupInterval {
			delete(l.perHost, host)
		}
	}
	l.lastCleanup = now
}

// Hosts returns the number of tracked per-host limiters.
func (l *Limiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perHost)
}
