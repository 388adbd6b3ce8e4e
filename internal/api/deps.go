// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"

	"github.com/ManuGH/mooncake/internal/catalog"
	"github.com/ManuGH/mooncake/internal/imagecache"
	"github.com/ManuGH/mooncake/internal/probe"
)

// Prober probes playback candidates. *probe.Service implements it.
type Prober interface {
	Probe(ctx context.Context, candidates []string) probe.Result
	ProbeMany(ctx context.Context, items []probe.Item) []probe.Result
}

// ImageCache serves decoded image handles. *imagecache.Cache implements it.
type ImageCache interface {
	Get(ctx context.Context, url string) (*imagecache.Handle, error)
	Evict(url string) bool
	Stats() imagecache.Stats
}

// ImageFetcher performs the raw outbound image fetch behind the proxy
// endpoint. *imageproxy.Fetcher implements it.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Catalog looks up media. *catalog.Client implements it.
type Catalog interface {
	Search(ctx context.Context, query string) ([]catalog.Media, error)
	Random(ctx context.Context) ([]catalog.Media, error)
	Item(ctx context.Context, id string) (catalog.Media, error)
}

// Deps holds the services the API exposes. A nil dependency leaves its
// routes unregistered.
type Deps struct {
	Probe   Prober
	Images  ImageCache
	Fetcher ImageFetcher
	Catalog Catalog
}
