// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads mooncake configuration with precedence
// ENV > YAML file > defaults.
package config

import "time"

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
	Probe     ProbeConfig     `yaml:"probe"`
	Images    ImagesConfig    `yaml:"images"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Version is stamped from the binary, never read from file or env.
	Version string `yaml:"-"`
}

type APIConfig struct {
	ListenAddr      string        `yaml:"listen"`
	RateLimit       int           `yaml:"rateLimit"`      // requests per minute per client IP, 0 disables
	ImageRateLimit  int           `yaml:"imageRateLimit"` // image fetch routes, per minute per client IP
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"` // CORS, "*" allows any
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type ProbeConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	SampleBytes int64         `yaml:"sampleBytes"`
	Concurrency int           `yaml:"concurrency"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	UserAgent   string        `yaml:"userAgent"`
}

type ImagesConfig struct {
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	MaxBytes     int64         `yaml:"maxBytes"`
	UserAgent    string        `yaml:"userAgent"`
	Referer      string        `yaml:"referer"`
	AllowHosts   []string      `yaml:"allowHosts"`
	AllowCIDRs   []string      `yaml:"allowCidrs"`
	RatePerSec   float64       `yaml:"ratePerSec"`
	Burst        int           `yaml:"burst"`
	// RemoteProxy points at another daemon's image proxy; empty fetches in process.
	RemoteProxy string `yaml:"remoteProxy"`
}

type PlaybackConfig struct {
	MaxRecoveries int `yaml:"maxRecoveries"`
}

type CatalogConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	Backend         string        `yaml:"backend"` // memory, redis, none
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	RedisAddr       string        `yaml:"redisAddr"`
	RedisPassword   string        `yaml:"redisPassword"`
	RedisDB         int           `yaml:"redisDb"`
	KeyPrefix       string        `yaml:"keyPrefix"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Environment  string  `yaml:"environment"`
	ExporterType string  `yaml:"exporter"` // grpc, http, noop
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// Defaults returns the configuration used when neither file nor env set a key.
func Defaults() AppConfig {
	return AppConfig{
		API: APIConfig{
			ListenAddr:      ":8088",
			RateLimit:       300,
			ImageRateLimit:  120,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:   "info",
			Service: "mooncake",
		},
		Probe: ProbeConfig{
			Timeout:     6 * time.Second,
			SampleBytes: 512 * 1024,
			Concurrency: 4,
			CacheTTL:    5 * time.Minute,
		},
		Images: ImagesConfig{
			FetchTimeout: 15 * time.Second,
			MaxBytes:     10 << 20,
			RatePerSec:   20,
			Burst:        40,
		},
		Playback: PlaybackConfig{
			MaxRecoveries: 3,
		},
		Catalog: CatalogConfig{
			BaseURL: "https://s1.m3u8.io/v1",
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Backend:         CacheBackendMemory,
			CleanupInterval: time.Minute,
			KeyPrefix:       "mooncake:",
		},
		Telemetry: TelemetryConfig{
			Environment:  "production",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
