// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package imagecache

import (
	"image"
	"sync"

	"github.com/google/uuid"

	"github.com/ManuGH/mooncake/internal/metrics"
)

// Handle is a decoded, displayable image held in memory. It stays valid until
// the owning entry is evicted.
type Handle struct {
	id          string
	contentType string
	format      string
	bounds      image.Rectangle
	size        int
	live        *liveCounter

	mu       sync.RWMutex
	data     []byte
	released bool
}

func newHandle(data []byte, contentType string, live *liveCounter) *Handle {
	h := &Handle{
		id:          uuid.NewString(),
		contentType: contentType,
		size:        len(data),
		data:        data,
		live:        live,
	}
	live.add(1, h.size)
	return h
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) ContentType() string { return h.contentType }

// Format is the decoder name that accepted the bytes (jpeg, png, gif, webp).
func (h *Handle) Format() string { return h.format }

func (h *Handle) Bounds() image.Rectangle { return h.bounds }

func (h *Handle) Size() int { return h.size }

// Bytes returns the encoded image. Callers must not modify the slice.
func (h *Handle) Bytes() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.released {
		return nil, ErrReleased
	}
	return h.data, nil
}

// Released reports whether the backing buffer was freed.
func (h *Handle) Released() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.released
}

func (h *Handle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	h.data = nil
	h.live.add(-1, h.size)
}

// liveCounter tracks handles that still hold bytes, per store and globally.
type liveCounter struct {
	mu    sync.Mutex
	count int
	bytes int
}

func (c *liveCounter) add(delta, size int) {
	c.mu.Lock()
	c.count += delta
	c.bytes += delta * size
	c.mu.Unlock()
	metrics.AddImageHandle(delta, size)
}

func (c *liveCounter) snapshot() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, c.bytes
}
