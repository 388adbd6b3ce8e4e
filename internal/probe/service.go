// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/mooncake/internal/cache"
	"github.com/ManuGH/mooncake/internal/log"
	"github.com/ManuGH/mooncake/internal/metrics"
	platformnet "github.com/ManuGH/mooncake/internal/platform/net"
	"github.com/ManuGH/mooncake/internal/telemetry"
)

const tracerName = "github.com/ManuGH/mooncake/internal/probe"

// Sampler runs one probe. *Prober implements it.
type Sampler interface {
	Probe(ctx context.Context, candidates []string) Result
}

// Item is one media item to probe in ProbeMany.
type Item struct {
	ID         string
	Candidates []string
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	CacheTTL    time.Duration // 0 disables result caching
	Concurrency int           // ProbeMany fan-out, default 4
	Logger      *zerolog.Logger
}

// Service shares in-flight probes of the same sampled URL, caches successful
// results and fans out over many items.
type Service struct {
	sampler     Sampler
	cache       cache.Cache
	ttl         time.Duration
	concurrency int
	logger      zerolog.Logger

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the shared run for one key. Its context is detached from the
// first caller and canceled once every waiter has left.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewService wraps sampler. A nil cache disables result caching.
func NewService(sampler Sampler, c cache.Cache, opts ServiceOptions) *Service {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	logger := log.WithComponent("probe")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Service{
		sampler:     sampler,
		cache:       c,
		ttl:         opts.CacheTTL,
		concurrency: opts.Concurrency,
		logger:      logger,
		flights:     make(map[string]*flight),
	}
}

func cacheKey(url string) string { return "probe:" + url }

// Probe returns the result for candidates. Concurrent calls sampling the same
// URL share one run. A caller whose ctx ends stops waiting and gets a
// canceled result; the run itself is only aborted when no caller is left.
func (s *Service) Probe(ctx context.Context, candidates []string) Result {
	if len(candidates) == 0 {
		res := Failure(ErrNoCandidates)
		metrics.ObserveProbe(res.Reason, string(res.Tier), 0, 0)
		return res
	}
	key := cacheKey(candidates[0])

	if res, ok := cache.GetJSON[Result](ctx, s.cache, key); ok {
		metrics.IncProbeCache("hit")
		return res
	}
	metrics.IncProbeCache("miss")

	f := s.join(ctx, key)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.run(f.ctx, key, candidates), nil
	})

	select {
	case r := <-ch:
		s.leave(key, f, false)
		if r.Shared {
			metrics.IncProbeCache("shared")
		}
		return r.Val.(Result)
	case <-ctx.Done():
		s.leave(key, f, true)
		res := Failure(fmt.Errorf("probe abandoned: %w", context.Canceled))
		res.SampledURL = candidates[0]
		return res
	}
}

func (s *Service) join(ctx context.Context, key string) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[key] = f
	}
	f.waiters++
	return f
}

func (s *Service) leave(key string, f *flight, abandoned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flights[key] == f {
		delete(s.flights, key)
	}
	if abandoned {
		// later callers must not join the aborted run
		s.group.Forget(key)
	}
}

func (s *Service) run(ctx context.Context, key string, candidates []string) Result {
	target := platformnet.SanitizeURL(candidates[0])
	ctx, span := telemetry.StartSpan(ctx, tracerName, "probe.run",
		attribute.String(telemetry.ProbeURLKey, target),
		attribute.Int(telemetry.ProbeCandidatesKey, len(candidates)),
	)
	start := time.Now()

	res := s.sampler.Probe(ctx, candidates)

	span.SetAttributes(telemetry.ProbeAttributes(target, string(res.Tier), res.Reason, res.ThroughputMBps, res.Bytes)...)
	var spanErr error
	if res.Failed {
		spanErr = errors.New(res.Reason)
	}
	telemetry.EndSpan(span, spanErr)

	label := "ok"
	if res.Failed {
		label = res.Reason
	}
	metrics.ObserveProbe(label, string(res.Tier), res.ThroughputMBps, time.Since(start))

	ev := s.logger.Info()
	if res.Failed {
		ev = s.logger.Warn().Str(log.FieldReason, res.Reason).Str("detail", res.Detail)
	}
	ev.Str(log.FieldEvent, "probe.completed").
		Str(log.FieldURL, target).
		Str(log.FieldTier, string(res.Tier)).
		Float64("throughput_mibps", res.ThroughputMBps).
		Int64(log.FieldDurationMS, time.Since(start).Milliseconds()).
		Msg("probe finished")

	if !res.Failed && s.ttl > 0 {
		if err := cache.SetJSON(ctx, s.cache, key, res, s.ttl); err != nil {
			s.logger.Warn().Err(err).Msg("caching probe result failed")
		}
	}
	return res
}

// ProbeMany probes items in parallel with bounded fan-out. Results are
// aligned with items; one item's failure never affects another.
func (s *Service) ProbeMany(ctx context.Context, items []Item) []Result {
	results := make([]Result, len(items))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, it := range items {
		g.Go(func() error {
			results[i] = s.Probe(ctx, it.Candidates)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Invalidate drops a cached result for the URL.
func (s *Service) Invalidate(ctx context.Context, url string) {
	s.cache.Delete(ctx, cacheKey(url))
}
