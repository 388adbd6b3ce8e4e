// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package probe estimates link throughput for an HLS stream by walking its
// manifests to the first segment and timing a byte-range read of it.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mooncake/internal/log"
	"github.com/ManuGH/mooncake/internal/manifest"
	"github.com/ManuGH/mooncake/internal/platform/httpx"
	platformnet "github.com/ManuGH/mooncake/internal/platform/net"
)

const (
	// DefaultTimeout is the budget shared by every leg of one probe.
	DefaultTimeout = 6 * time.Second
	// DefaultSampleBytes is the size of the segment range request.
	DefaultSampleBytes int64 = 512 * 1024

	maxManifestBytes = 2 << 20
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Prober runs single probes. It is safe for concurrent use.
type Prober struct {
	client      *http.Client
	timeout     time.Duration
	sampleBytes int64
	clock       Clock
	userAgent   string
	logger      zerolog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithSampleBytes(n int64) Option {
	return func(p *Prober) {
		if n > 0 {
			p.sampleBytes = n
		}
	}
}

// WithClock replaces the clock used to time the segment transfer.
func WithClock(c Clock) Option {
	return func(p *Prober) { p.clock = c }
}

func WithUserAgent(ua string) Option {
	return func(p *Prober) { p.userAgent = ua }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Prober) { p.logger = l }
}

// New returns a Prober. A nil client gets a traced httpx client.
func New(client *http.Client, opts ...Option) *Prober {
	p := &Prober{
		client:      client,
		timeout:     DefaultTimeout,
		sampleBytes: DefaultSampleBytes,
		clock:       realClock{},
		logger:      log.WithComponent("probe"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = httpx.New(httpx.Options{Timeout: p.timeout + time.Second, Traced: true})
	}
	return p
}

// Probe samples the first candidate URL. It never returns an error: every
// failure is folded into a failed Result.
func (p *Prober) Probe(ctx context.Context, candidates []string) Result {
	if len(candidates) == 0 {
		return Failure(ErrNoCandidates)
	}
	target := candidates[0]

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.run(probeCtx, target)
	if err != nil {
		err = classify(ctx, probeCtx, err)
		res = Failure(err)
		p.logger.Debug().
			Err(err).
			Str(log.FieldEvent, "probe.failed").
			Str(log.FieldURL, platformnet.SanitizeURL(target)).
			Str(log.FieldReason, res.Reason).
			Msg("probe failed")
	}
	res.SampledURL = target
	return res
}

func (p *Prober) run(ctx context.Context, target string) (Result, error) {
	segment, err := p.resolveSegment(ctx, target)
	if err != nil {
		return Result{}, err
	}
	return p.measure(ctx, segment)
}

// resolveSegment walks master -> variant -> first segment.
func (p *Prober) resolveSegment(ctx context.Context, target string) (manifest.Reference, error) {
	doc, err := p.fetchManifest(ctx, target)
	if err != nil {
		return manifest.Reference{}, err
	}

	ref, kind, ok := manifest.Next(doc)
	if !ok {
		return manifest.Reference{}, fmt.Errorf("%w: no %s reference in %s", ErrManifestStructure, nextName(kind), platformnet.SanitizeURL(target))
	}
	if kind == manifest.KindMedia {
		return ref, nil
	}

	variant, err := p.fetchManifest(ctx, ref.String())
	if err != nil {
		return manifest.Reference{}, err
	}
	seg, ok := manifest.FirstSegment(variant)
	if !ok {
		return manifest.Reference{}, fmt.Errorf("%w: no segment in variant %s", ErrManifestStructure, platformnet.SanitizeURL(ref.String()))
	}
	return seg, nil
}

func nextName(k manifest.Kind) string {
	if k == manifest.KindMaster {
		return "variant"
	}
	return "segment"
}

func (p *Prober) fetchManifest(ctx context.Context, rawURL string) (manifest.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return manifest.Document{}, fmt.Errorf("%w: %w", ErrManifestFetch, err)
	}
	req.Header.Set("Accept", "application/vnd.apple.mpegurl, application/x-mpegurl, */*")
	p.setUserAgent(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return manifest.Document{}, fmt.Errorf("%w: %w", ErrManifestFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return manifest.Document{}, fmt.Errorf("%w: status %d", ErrManifestFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes+1))
	if err != nil {
		return manifest.Document{}, fmt.Errorf("%w: read body: %w", ErrManifestFetch, err)
	}
	if len(body) > maxManifestBytes {
		return manifest.Document{}, fmt.Errorf("%w: manifest exceeds %d bytes", ErrManifestFetch, maxManifestBytes)
	}

	// Relative references resolve against the final URL after redirects.
	return manifest.NewDocument(string(body), resp.Request.URL), nil
}

func (p *Prober) measure(ctx context.Context, segment manifest.Reference) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segment.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSegmentFetch, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", p.sampleBytes-1))
	p.setUserAgent(req)

	start := p.clock.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSegmentFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return Result{}, fmt.Errorf("%w: status %d", ErrSegmentFetch, resp.StatusCode)
	}

	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, p.sampleBytes))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %w", ErrSegmentFetch, err)
	}
	elapsed := p.clock.Now().Sub(start)

	res, err := Succeeded(n, elapsed)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %d bytes in %s", err, n, elapsed)
	}
	p.logger.Debug().
		Str(log.FieldEvent, "probe.sampled").
		Str(log.FieldSegmentURL, platformnet.SanitizeURL(segment.String())).
		Int64(log.FieldBytes, n).
		Int64(log.FieldDurationMS, elapsed.Milliseconds()).
		Msg("segment sampled")
	return res, nil
}

func (p *Prober) setUserAgent(req *http.Request) {
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
}

// classify attributes a leg error to the caller abandoning the probe or to
// the probe's own budget running out.
func classify(parent, probeCtx context.Context, err error) error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return fmt.Errorf("probe abandoned: %w", context.Canceled)
	case errors.Is(probeCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrProbeTimeout, err)
	default:
		return err
	}
}
