// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package imageproxy fetches remote images server side so hotlink-protected
// posters can be displayed, and adapts the fetcher to the image cache.
package imageproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mooncake/internal/log"
	"github.com/ManuGH/mooncake/internal/metrics"
	"github.com/ManuGH/mooncake/internal/platform/httpx"
	platformnet "github.com/ManuGH/mooncake/internal/platform/net"
	"github.com/ManuGH/mooncake/internal/ratelimit"
	"github.com/ManuGH/mooncake/internal/resilience"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultReferer   = "https://www.douban.com/"
	DefaultMaxBytes  = 10 << 20
	DefaultTimeout   = 15 * time.Second

	breakerThreshold = 5
	breakerReset     = 30 * time.Second
)

var (
	ErrInvalidURL     = errors.New("invalid image url")
	ErrNotAllowed     = errors.New("image url not allowed")
	ErrUpstreamStatus = errors.New("upstream returned non-200 status")
	ErrTooLarge       = errors.New("image exceeds size limit")
	ErrEmptyBody      = errors.New("upstream returned empty body")
)

// Options configures a Fetcher. Zero values select defaults.
type Options struct {
	Client    *http.Client
	Policy    platformnet.OutboundPolicy
	MaxBytes  int64
	Timeout   time.Duration
	UserAgent string
	Referer   string
	Limiter   *ratelimit.Limiter
	Breakers  *resilience.Group
	Logger    *zerolog.Logger
}

// Fetcher performs the outbound GET for one image.
type Fetcher struct {
	client    *http.Client
	policy    platformnet.OutboundPolicy
	maxBytes  int64
	userAgent string
	referer   string
	limiter   *ratelimit.Limiter
	breakers  *resilience.Group
	logger    zerolog.Logger
}

func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = httpx.New(httpx.Options{Timeout: opts.Timeout, Traced: true})
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Referer == "" {
		opts.Referer = DefaultReferer
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(ratelimit.DefaultConfig())
	}
	if opts.Breakers == nil {
		opts.Breakers = resilience.NewGroup(breakerThreshold, breakerReset, resilience.WithFailureFilter(countsAsUpstreamFailure))
	}
	logger := log.WithComponent("imageproxy")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Fetcher{
		client:    opts.Client,
		policy:    opts.Policy,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
		referer:   opts.Referer,
		limiter:   opts.Limiter,
		breakers:  opts.Breakers,
		logger:    logger,
	}
}

// countsAsUpstreamFailure keeps caller cancellation and oversize bodies from
// opening a host's breaker.
func countsAsUpstreamFailure(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrTooLarge)
}

// Fetch returns the image bytes and the upstream content type.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	target, host, err := f.validate(ctx, rawURL)
	if err != nil {
		metrics.IncUpstreamRequest("imageproxy", upstreamResult(err))
		return nil, "", err
	}

	if err := f.limiter.Wait(ctx, host); err != nil {
		return nil, "", err
	}

	var (
		data        []byte
		contentType string
	)
	start := time.Now()
	err = f.breakers.Execute(host, func() error {
		var ferr error
		data, contentType, ferr = f.do(ctx, target)
		return ferr
	})

	result := "ok"
	if err != nil {
		result = upstreamResult(err)
		f.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "imageproxy.failed").
			Str(log.FieldURL, platformnet.SanitizeURL(target)).
			Str(log.FieldReason, result).
			Msg("image fetch failed")
	}
	metrics.IncUpstreamRequest("imageproxy", result)
	if err != nil {
		return nil, "", err
	}

	f.logger.Debug().
		Str(log.FieldEvent, "imageproxy.fetched").
		Str(log.FieldURL, platformnet.SanitizeURL(target)).
		Str(log.FieldContentType, contentType).
		Int(log.FieldBytes, len(data)).
		Int64(log.FieldDurationMS, time.Since(start).Milliseconds()).
		Msg("image fetched")
	return data, contentType, nil
}

func (f *Fetcher) validate(ctx context.Context, rawURL string) (string, string, error) {
	target, err := platformnet.ValidateOutboundURL(ctx, rawURL, f.policy)
	if err != nil {
		if errors.Is(err, platformnet.ErrOutboundNotAllowed) {
			return "", "", fmt.Errorf("%w: %w", ErrNotAllowed, err)
		}
		return "", "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	return target, u.Hostname(), nil
}

func (f *Fetcher) do(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Referer", f.referer)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, "", fmt.Errorf("%w: content-length %d", ErrTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyBody
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func upstreamResult(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrNotAllowed), errors.Is(err, ErrInvalidURL):
		return "rejected"
	case errors.Is(err, ErrUpstreamStatus):
		return "status"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
