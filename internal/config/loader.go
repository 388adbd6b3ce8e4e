// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // every env key the loader looked at
}

// NewLoader creates a new configuration loader. An empty configPath loads
// from defaults and environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

func (l *Loader) envString(name, defaultVal string) string {
	return ParseString(l.key(name), defaultVal)
}

func (l *Loader) envBool(name string, defaultVal bool) bool {
	return ParseBool(l.key(name), defaultVal)
}

func (l *Loader) envInt(name string, defaultVal int) int {
	return ParseInt(l.key(name), defaultVal)
}

func (l *Loader) envInt64(name string, defaultVal int64) int64 {
	return ParseInt64(l.key(name), defaultVal)
}

func (l *Loader) envDuration(name string, defaultVal time.Duration) time.Duration {
	return ParseDuration(l.key(name), defaultVal)
}

func (l *Loader) envFloat(name string, defaultVal float64) float64 {
	return ParseFloat(l.key(name), defaultVal)
}

func (l *Loader) envList(name string, defaultVal []string) []string {
	return ParseStringList(l.key(name), defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults.
// Order: defaults -> strict file parse -> env -> validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing: unknown keys,
// multiple documents and trailing content are errors.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnvConfig applies MOONCAKE_* overrides.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.API.ListenAddr = l.envString("LISTEN", cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt("API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.ImageRateLimit = l.envInt("API_IMAGE_RATE_LIMIT", cfg.API.ImageRateLimit)
	cfg.API.ReadTimeout = l.envDuration("API_READ_TIMEOUT", cfg.API.ReadTimeout)
	cfg.API.WriteTimeout = l.envDuration("API_WRITE_TIMEOUT", cfg.API.WriteTimeout)
	cfg.API.ShutdownTimeout = l.envDuration("API_SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)
	cfg.API.AllowedOrigins = l.envList("API_ALLOWED_ORIGINS", cfg.API.AllowedOrigins)

	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)

	cfg.Probe.Timeout = l.envDuration("PROBE_TIMEOUT", cfg.Probe.Timeout)
	cfg.Probe.SampleBytes = l.envInt64("PROBE_SAMPLE_BYTES", cfg.Probe.SampleBytes)
	cfg.Probe.Concurrency = l.envInt("PROBE_CONCURRENCY", cfg.Probe.Concurrency)
	cfg.Probe.CacheTTL = l.envDuration("PROBE_CACHE_TTL", cfg.Probe.CacheTTL)
	cfg.Probe.UserAgent = l.envString("PROBE_USER_AGENT", cfg.Probe.UserAgent)

	cfg.Images.FetchTimeout = l.envDuration("IMAGES_FETCH_TIMEOUT", cfg.Images.FetchTimeout)
	cfg.Images.MaxBytes = l.envInt64("IMAGES_MAX_BYTES", cfg.Images.MaxBytes)
	cfg.Images.UserAgent = l.envString("IMAGES_USER_AGENT", cfg.Images.UserAgent)
	cfg.Images.Referer = l.envString("IMAGES_REFERER", cfg.Images.Referer)
	cfg.Images.AllowHosts = l.envList("IMAGES_ALLOW_HOSTS", cfg.Images.AllowHosts)
	cfg.Images.AllowCIDRs = l.envList("IMAGES_ALLOW_CIDRS", cfg.Images.AllowCIDRs)
	cfg.Images.RatePerSec = l.envFloat("IMAGES_RATE_PER_SEC", cfg.Images.RatePerSec)
	cfg.Images.Burst = l.envInt("IMAGES_BURST", cfg.Images.Burst)
	cfg.Images.RemoteProxy = l.envString("IMAGES_REMOTE_PROXY", cfg.Images.RemoteProxy)

	cfg.Playback.MaxRecoveries = l.envInt("PLAYBACK_MAX_RECOVERIES", cfg.Playback.MaxRecoveries)

	cfg.Catalog.BaseURL = l.envString("CATALOG_BASE_URL", cfg.Catalog.BaseURL)
	cfg.Catalog.Timeout = l.envDuration("CATALOG_TIMEOUT", cfg.Catalog.Timeout)

	cfg.Cache.Backend = strings.ToLower(l.envString("CACHE_BACKEND", cfg.Cache.Backend))
	cfg.Cache.CleanupInterval = l.envDuration("CACHE_CLEANUP_INTERVAL", cfg.Cache.CleanupInterval)
	cfg.Cache.RedisAddr = l.envString("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = l.envString("REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = l.envInt("REDIS_DB", cfg.Cache.RedisDB)
	cfg.Cache.KeyPrefix = l.envString("CACHE_KEY_PREFIX", cfg.Cache.KeyPrefix)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Environment = l.envString("TELEMETRY_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.ExporterType = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

// UnknownEnvKeys lists MOONCAKE_* variables in environ that the loader never
// consulted, which usually means a typo. Call after Load.
func (l *Loader) UnknownEnvKeys(environ []string) []string {
	var unknown []string
	for _, kv := range environ {
		k, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}
