// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"strings"

	"github.com/ManuGH/mooncake/internal/validate"
)

// Validate checks a fully merged configuration.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("api.listen", cfg.API.ListenAddr)
	v.NonNegative("api.rateLimit", cfg.API.RateLimit)
	v.NonNegative("api.imageRateLimit", cfg.API.ImageRateLimit)
	v.PositiveDuration("api.readTimeout", cfg.API.ReadTimeout)
	v.PositiveDuration("api.writeTimeout", cfg.API.WriteTimeout)
	v.PositiveDuration("api.shutdownTimeout", cfg.API.ShutdownTimeout)

	v.Custom("log.level", cfg.Log.Level, logLevel)

	v.PositiveDuration("probe.timeout", cfg.Probe.Timeout)
	v.PositiveInt64("probe.sampleBytes", cfg.Probe.SampleBytes)
	v.Range("probe.concurrency", cfg.Probe.Concurrency, 1, 64)
	if cfg.Probe.CacheTTL < 0 {
		v.AddError("probe.cacheTTL", "cannot be negative", cfg.Probe.CacheTTL)
	}

	v.PositiveDuration("images.fetchTimeout", cfg.Images.FetchTimeout)
	v.PositiveInt64("images.maxBytes", cfg.Images.MaxBytes)
	if cfg.Images.RatePerSec <= 0 {
		v.AddError("images.ratePerSec", "must be positive", cfg.Images.RatePerSec)
	}
	v.Positive("images.burst", cfg.Images.Burst)
	for _, entry := range cfg.Images.AllowCIDRs {
		v.CIDR("images.allowCidrs", entry)
	}
	if cfg.Images.RemoteProxy != "" {
		v.URL("images.remoteProxy", cfg.Images.RemoteProxy, []string{"http", "https"})
	}

	v.Range("playback.maxRecoveries", cfg.Playback.MaxRecoveries, 0, 20)

	v.URL("catalog.baseUrl", cfg.Catalog.BaseURL, []string{"http", "https"})
	v.PositiveDuration("catalog.timeout", cfg.Catalog.Timeout)

	v.OneOf("cache.backend", cfg.Cache.Backend, []string{CacheBackendMemory, CacheBackendRedis, CacheBackendNone})
	if cfg.Cache.Backend == CacheBackendRedis {
		v.NotEmpty("cache.redisAddr", cfg.Cache.RedisAddr)
	}
	if cfg.Cache.Backend == CacheBackendMemory {
		v.PositiveDuration("cache.cleanupInterval", cfg.Cache.CleanupInterval)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.ExporterType, []string{"grpc", "http", "noop"})
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
		if cfg.Telemetry.ExporterType != "noop" {
			v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		}
	}

	return v.Err()
}

var errLogLevel = errors.New("must be one of trace, debug, info, warn, error")

// logLevel accepts the zerolog levels the logger is configured with; empty
// means the default.
func logLevel(value any) error {
	level, _ := value.(string)
	level = strings.ToLower(level)
	if level == "" || level == "trace" {
		return nil
	}
	if _, err := validate.ParseLogLevel(level); err != nil {
		return errLogLevel
	}
	return nil
}
