// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/ManuGH/mooncake/internal/cache"
	"github.com/ManuGH/mooncake/internal/catalog"
	"github.com/ManuGH/mooncake/internal/config"
	"github.com/ManuGH/mooncake/internal/imagecache"
	"github.com/ManuGH/mooncake/internal/imageproxy"
	"github.com/ManuGH/mooncake/internal/log"
	"github.com/ManuGH/mooncake/internal/platform/httpx"
	platformnet "github.com/ManuGH/mooncake/internal/platform/net"
	"github.com/ManuGH/mooncake/internal/probe"
	"github.com/ManuGH/mooncake/internal/ratelimit"
	"github.com/ManuGH/mooncake/internal/version"
)

// loadConfig loads configuration with precedence ENV > file > defaults and
// reconfigures the global logger from it.
func (c *cli) loadConfig(path string) (config.AppConfig, *config.Loader, error) {
	loader := config.NewLoader(strings.TrimSpace(path), version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	log.Configure(log.Config{
		Level:   cfg.Log.Level,
		Output:  c.stderr,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})
	return cfg, loader, nil
}

// buildCache selects the probe result backend.
func buildCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		}, log.WithComponent("cache"))
	case config.CacheBackendNone:
		return cache.NewNoOpCache(), nil
	case config.CacheBackendMemory, "":
		return cache.NewMemoryCache(cfg.CleanupInterval), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func (c *cli) buildProber(cfg config.ProbeConfig) *probe.Prober {
	return probe.New(c.httpClient,
		probe.WithTimeout(cfg.Timeout),
		probe.WithSampleBytes(cfg.SampleBytes),
		probe.WithUserAgent(cfg.UserAgent),
	)
}

func (c *cli) buildCatalog(cfg config.CatalogConfig) *catalog.Client {
	client := c.httpClient
	if client == nil {
		client = httpx.New(httpx.Options{Timeout: cfg.Timeout, Traced: true})
	}
	return catalog.New(cfg.BaseURL, client)
}

func (c *cli) buildFetcher(cfg config.ImagesConfig) *imageproxy.Fetcher {
	limits := ratelimit.DefaultConfig()
	limits.GlobalRate = rate.Limit(cfg.RatePerSec)
	limits.GlobalBurst = cfg.Burst
	return imageproxy.NewFetcher(imageproxy.Options{
		Client: c.httpClient,
		Policy: platformnet.OutboundPolicy{
			AllowHosts: cfg.AllowHosts,
			AllowCIDRs: cfg.AllowCIDRs,
		},
		MaxBytes:  cfg.MaxBytes,
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
		Referer:   cfg.Referer,
		Limiter:   ratelimit.New(limits),
	})
}

// buildImageProxy fetches in process unless a remote daemon is configured.
func (c *cli) buildImageProxy(cfg config.ImagesConfig, fetcher *imageproxy.Fetcher) imagecache.Proxy {
	if remote := strings.TrimSpace(cfg.RemoteProxy); remote != "" {
		return imageproxy.NewClient(remote, c.httpClient)
	}
	return imageproxy.NewLocal(fetcher)
}
