// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/ManuGH/mooncake/internal/api"
	"github.com/ManuGH/mooncake/internal/api/middleware"
	"github.com/ManuGH/mooncake/internal/config"
	"github.com/ManuGH/mooncake/internal/daemon"
	"github.com/ManuGH/mooncake/internal/imagecache"
	"github.com/ManuGH/mooncake/internal/log"
	platformnet "github.com/ManuGH/mooncake/internal/platform/net"
	"github.com/ManuGH/mooncake/internal/probe"
	"github.com/ManuGH/mooncake/internal/telemetry"
	"github.com/ManuGH/mooncake/internal/version"
)

func (c *cli) runServe(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("mooncaked serve", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Safe defaults until config is loaded
	log.Configure(log.Config{Level: "info", Output: c.stderr, Service: "mooncake", Version: version.Version})
	logger := log.WithComponent("daemon")

	path := strings.TrimSpace(*configPath)
	cfg, loader, err := c.loadConfig(path)
	if err != nil {
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", path).
			Msg("failed to load configuration")
		return 1
	}
	logger = log.WithComponent("daemon")

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", path).
		Msg("configuration loaded")
	if unknown := loader.UnknownEnvKeys(os.Environ()); len(unknown) > 0 {
		logger.Warn().
			Str(log.FieldEvent, "config.unknown_env").
			Strs("keys", unknown).
			Msg("ignoring unknown environment variables")
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "telemetry.init_failed").Msg("failed to initialise tracing")
		return 1
	}

	results, err := buildCache(ctx, cfg.Cache)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "cache.init_failed").Msg("failed to initialise probe cache")
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return 1
	}

	probeLogger := log.WithComponent("probe")
	probes := probe.NewService(c.buildProber(cfg.Probe), results, probe.ServiceOptions{
		CacheTTL:    cfg.Probe.CacheTTL,
		Concurrency: cfg.Probe.Concurrency,
		Logger:      &probeLogger,
	})

	fetcher := c.buildFetcher(cfg.Images)
	imageLogger := log.WithComponent("imagecache")
	images := imagecache.New(imagecache.NewStore(), c.buildImageProxy(cfg.Images, fetcher), imagecache.Options{
		FetchTimeout: cfg.Images.FetchTimeout,
		Logger:       &imageLogger,
	})

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = cfg.Log.Service
	}
	server := api.New(api.Config{
		Version: cfg.Version,
		Stack: middleware.StackConfig{
			EnableCORS:            true,
			AllowedOrigins:        cfg.API.AllowedOrigins,
			EnableSecurityHeaders: true,
			EnableMetrics:         true,
			TracingService:        tracing,
			EnableLogging:         true,
			RateLimitPerMinute:    cfg.API.RateLimit,
		},
		ImageRateLimit: cfg.API.ImageRateLimit,
	}, api.Deps{
		Probe:   probes,
		Images:  images,
		Fetcher: fetcher,
		Catalog: c.buildCatalog(cfg.Catalog).WithLogger(log.WithComponent("catalog")),
	})

	mgr, err := daemon.NewManager(daemon.ServerConfigFrom(cfg.API), daemon.Deps{
		Logger:     logger,
		APIHandler: server.Handler(),
	})
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "manager.creation_failed").Msg("failed to create daemon manager")
		images.Close()
		_ = results.Close()
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return 1
	}

	// Hooks run LIFO: config watcher, image cache, probe cache, tracing.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("probe-cache", func(context.Context) error { return results.Close() })
	mgr.RegisterShutdownHook("image-cache", func(context.Context) error {
		images.Close()
		return nil
	})

	holder := config.NewHolder(cfg, loader, path)
	if path != "" {
		if err := holder.StartWatcher(ctx); err != nil {
			logger.Warn().Err(err).Str(log.FieldEvent, "config.watch_failed").Msg("config hot reload disabled")
		}
	}
	stopReload := c.followReloads(holder)
	mgr.RegisterShutdownHook("config-watcher", func(context.Context) error {
		holder.Stop()
		stopReload()
		return nil
	})

	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.API.ListenAddr).
		Str("catalog", platformnet.SanitizeURL(cfg.Catalog.BaseURL)).
		Str("cache_backend", cfg.Cache.Backend).
		Bool("remote_image_proxy", cfg.Images.RemoteProxy != "").
		Msg("starting mooncake")

	if err := mgr.Start(ctx); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "manager.failed").Msg("daemon failed")
		return 1
	}
	logger.Info().Msg("server exiting")
	return 0
}

// followReloads applies hot-reloadable settings. Only the log level and
// service name take effect without a restart.
func (c *cli) followReloads(holder *config.Holder) func() {
	updates := make(chan config.AppConfig, 1)
	holder.RegisterListener(updates)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case cfg := <-updates:
				log.Configure(log.Config{
					Level:   cfg.Log.Level,
					Output:  c.stderr,
					Service: cfg.Log.Service,
					Version: cfg.Version,
				})
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}
