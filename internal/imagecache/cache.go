// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package imagecache resolves remote image URLs into in-memory handles with
// at most one outstanding fetch per URL.
package imagecache

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/ManuGH/mooncake/internal/log"
	"github.com/ManuGH/mooncake/internal/metrics"
	platformnet "github.com/ManuGH/mooncake/internal/platform/net"
	"github.com/ManuGH/mooncake/internal/telemetry"
)

const (
	// DefaultContentType is used when the proxy reports none.
	DefaultContentType = "image/jpeg"
	// DefaultFetchTimeout bounds one proxy request plus decode.
	DefaultFetchTimeout = 15 * time.Second

	tracerName = "github.com/ManuGH/mooncake/internal/imagecache"
)

var (
	ErrImageFetch  = errors.New("image fetch failed")
	ErrImageDecode = errors.New("image decode failed")
	ErrReleased    = errors.New("image handle released")
	ErrClosed      = errors.New("image cache closed")
)

// Payload is the proxy's answer: base64 encoded bytes and a content type.
type Payload struct {
	Data        string `json:"data"`
	ContentType string `json:"contentType"`
}

// Proxy fetches image bytes on behalf of the cache.
type Proxy interface {
	Request(ctx context.Context, url string) (Payload, error)
}

// State is the lifecycle of one cache entry.
type State string

const (
	StatePending State = "pending"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

type entry struct {
	state  State
	handle *Handle
	err    error
	done   chan struct{}
}

// Store is the process-scoped entry table. Tests create isolated stores.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	live    liveCounter
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Stats is a point-in-time view of a store.
type Stats struct {
	Ready       int `json:"ready"`
	Pending     int `json:"pending"`
	Failed      int `json:"failed"`
	LiveHandles int `json:"liveHandles"`
	LiveBytes   int `json:"liveBytes"`
}

// Options configures a Cache.
type Options struct {
	FetchTimeout time.Duration
	Logger       *zerolog.Logger
}

// Cache serves handles from a Store, fetching misses through a Proxy.
type Cache struct {
	store   *Store
	proxy   Proxy
	timeout time.Duration
	logger  zerolog.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	closed  bool
	closeMu sync.Mutex
}

// New returns a Cache over store. A nil store gets a fresh one.
func New(store *Store, proxy Proxy, opts Options) *Cache {
	if store == nil {
		store = NewStore()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	logger := log.WithComponent("imagecache")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Cache{
		store:   store,
		proxy:   proxy,
		timeout: opts.FetchTimeout,
		logger:  logger,
		baseCtx: ctx,
		stop:    stop,
	}
}

// Get returns the handle for url. A Ready entry is returned without I/O, a
// Pending one is awaited, and a Failed one returns its error until evicted.
// ctx only bounds the wait; the fetch itself is not tied to any caller.
func (c *Cache) Get(ctx context.Context, url string) (*Handle, error) {
	s := c.store
	s.mu.Lock()
	e, ok := s.entries[url]
	if ok {
		state := e.state
		s.mu.Unlock()
		switch state {
		case StateReady:
			metrics.IncImageLookup("hit")
			return e.handle, nil
		case StateFailed:
			metrics.IncImageLookup("failed")
			return nil, e.err
		default:
			metrics.IncImageLookup("wait")
		}
		return c.wait(ctx, e)
	}

	if !c.start() {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	e = &entry{state: StatePending, done: make(chan struct{})}
	s.entries[url] = e
	s.mu.Unlock()
	metrics.IncImageLookup("miss")

	go c.fetch(url, e)
	return c.wait(ctx, e)
}

func (c *Cache) start() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	return true
}

func (c *Cache) wait(ctx context.Context, e *entry) (*Handle, error) {
	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if e.state == StateReady {
		return e.handle, nil
	}
	return nil, e.err
}

func (c *Cache) fetch(url string, e *entry) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(c.baseCtx, c.timeout)
	defer cancel()
	safe := platformnet.SanitizeURL(url)
	ctx, span := telemetry.StartSpan(ctx, tracerName, "imagecache.fetch", telemetry.ImageAttributes(safe, "", 0)...)

	h, err := c.safeLoad(ctx, url)
	telemetry.EndSpan(span, err)

	c.store.mu.Lock()
	if err != nil {
		e.state = StateFailed
		e.err = err
		// A fetch aborted by Close is not an upstream verdict. Drop the entry
		// so other caches sharing the store refetch.
		if c.baseCtx.Err() != nil && c.store.entries[url] == e {
			delete(c.store.entries, url)
		}
	} else {
		e.state = StateReady
		e.handle = h
	}
	close(e.done)
	c.store.mu.Unlock()

	if err != nil {
		result := "fetch_error"
		if errors.Is(err, ErrImageDecode) {
			result = "decode_error"
		}
		metrics.IncImageFetch(result)
		c.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "imagecache.failed").
			Str(log.FieldURL, safe).
			Msg("image entry failed")
		return
	}
	metrics.IncImageFetch("ready")
	c.logger.Debug().
		Str(log.FieldEvent, "imagecache.ready").
		Str(log.FieldURL, safe).
		Str(log.FieldHandle, h.ID()).
		Str(log.FieldContentType, h.ContentType()).
		Int(log.FieldBytes, h.Size()).
		Msg("image entry ready")
}

// safeLoad turns a panicking Proxy or decoder into a fetch failure.
func (c *Cache) safeLoad(ctx context.Context, url string) (h *Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str(log.FieldEvent, "imagecache.panic").
				Str(log.FieldURL, platformnet.SanitizeURL(url)).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("image fetch panicked")
			h = nil
			err = fmt.Errorf("%w: panic: %v", ErrImageFetch, r)
		}
	}()
	return c.load(ctx, url)
}

// load fetches, decodes and validates. The returned handle is published by
// the caller; on any error no handle survives.
func (c *Cache) load(ctx context.Context, url string) (*Handle, error) {
	payload, err := c.proxy.Request(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageFetch, err)
	}
	if payload.Data == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrImageFetch)
	}

	raw, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", ErrImageDecode, err)
	}
	contentType := payload.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	h := newHandle(raw, contentType, &c.store.live)
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		h.release()
		return nil, fmt.Errorf("%w: %w", ErrImageDecode, err)
	}
	h.format = format
	h.bounds = img.Bounds()
	return h, nil
}

// Evict releases a Ready handle or clears a Failed entry so the next Get
// refetches. Pending entries are left alone; it reports whether an entry
// was removed.
func (c *Cache) Evict(url string) bool {
	s := c.store
	s.mu.Lock()
	e, ok := s.entries[url]
	if !ok || e.state == StatePending {
		s.mu.Unlock()
		return false
	}
	delete(s.entries, url)
	s.mu.Unlock()

	if e.handle != nil {
		e.handle.release()
	}
	c.logger.Debug().
		Str(log.FieldEvent, "imagecache.evicted").
		Str(log.FieldURL, platformnet.SanitizeURL(url)).
		Str("state", string(e.state)).
		Msg("image entry evicted")
	return true
}

// Peek returns the state of url without fetching.
func (c *Cache) Peek(url string) (State, bool) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	e, ok := c.store.entries[url]
	if !ok {
		return "", false
	}
	return e.state, true
}

func (c *Cache) Stats() Stats {
	s := c.store
	s.mu.Lock()
	var st Stats
	for _, e := range s.entries {
		switch e.state {
		case StateReady:
			st.Ready++
		case StatePending:
			st.Pending++
		case StateFailed:
			st.Failed++
		}
	}
	s.mu.Unlock()
	st.LiveHandles, st.LiveBytes = s.live.snapshot()
	return st
}

// Close aborts in-flight fetches and waits for them. Their waiters get the
// fetch error but the entries are removed, so a Cache sharing the Store
// fetches them again. Ready handles remain valid; later misses return
// ErrClosed.
func (c *Cache) Close() {
	c.closeMu.Lock()
	c.closed = true
	c.closeMu.Unlock()
	c.stop()
	c.wg.Wait()
}
