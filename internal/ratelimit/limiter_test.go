// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestLimiterGlobalBurst(t *testing.T) {
	limiter := New(Config{
		GlobalRate:   10,
		GlobalBurst:  20,
		PerHostRate:  100,
		PerHostBurst: 200,
	})

	allowed := 0
	for i := 0; i < 25; i++ {
		if limiter.Allow("img.example") {
			allowed++
		}
	}

	// refill during the loop may add one token
	assert.GreaterOrEqual(t, allowed, 20)
	assert.LessOrEqual(t, allowed, 21)
}

func TestLimiterPerHostIsolation(t *testing.T) {
	limiter := New(Config{
		GlobalRate:   1000,
		GlobalBurst:  1000,
		PerHostRate:  rate.Every(time.Hour),
		PerHostBurst: 2,
	})

	assert.True(t, limiter.Allow("a.example"))
	assert.True(t, limiter.Allow("a.example"))
	assert.False(t, limiter.Allow("a.example"))

	assert.True(t, limiter.Allow("b.example"), "other hosts keep their own budget")
	assert.Equal(t, 2, limiter.Hosts())
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	limiter := New(Config{
		GlobalRate:   1000,
		GlobalBurst:  1000,
		PerHostRate:  rate.Every(time.Hour),
		PerHostBurst: 1,
	})
	require.NoError(t, limiter.Wait(context.Background(), "a.example"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := limiter.Wait(ctx, "a.example")
	assert.Error(t, err)
}

func TestLimiterCleanupDropsIdleHosts(t *testing.T) {
	limiter := New(Config{
		GlobalRate:      1000,
		GlobalBurst:     1000,
		PerHostRate:     10,
		PerHostBurst:    10,
		CleanupInterval: time.Minute,
	})
	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }
	limiter.lastCleanup = now

	limiter.Allow("old.example")
	now = now.Add(30 * time.Second)
	limiter.Allow("fresh.example")
	assert.Equal(t, 2, limiter.Hosts())

	now = now.Add(45 * time.Second)
	limiter.Allow("fresh.example")
	assert.Equal(t, 1, limiter.Hosts())
}
