// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAreValid(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Probe, cfg.Probe)
	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, 6*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, int64(524288), cfg.Probe.SampleBytes)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, "mooncake.yaml", `
probe:
  timeout: 3s
  concurrency: 8
images:
  allowCidrs: ["10.0.0.0/8"]
catalog:
  baseUrl: https://file.example/v1
`)
	t.Setenv("MOONCAKE_PROBE_TIMEOUT", "2s")
	t.Setenv("MOONCAKE_IMAGES_ALLOW_CIDRS", "127.0.0.0/8, ::1 ,")

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Probe.Timeout, "env beats file")
	assert.Equal(t, 8, cfg.Probe.Concurrency, "file beats default")
	assert.Equal(t, "https://file.example/v1", cfg.Catalog.BaseURL)
	assert.Equal(t, []string{"127.0.0.0/8", "::1"}, cfg.Images.AllowCIDRs)
	assert.Equal(t, Defaults().Images.MaxBytes, cfg.Images.MaxBytes, "untouched keys keep defaults")
}

func TestLoad_InvalidEnvKeepsDefault(t *testing.T) {
	t.Setenv("MOONCAKE_PROBE_CONCURRENCY", "lots")
	t.Setenv("MOONCAKE_TELEMETRY_ENABLED", "maybe")

	cfg, err := NewLoader("", "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Probe.Concurrency)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_StrictYAML(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "unknown key", file: "c.yaml", body: "probe:\n  timout: 3s\n", wantErr: ErrUnknownConfigField},
		{name: "multiple documents", file: "c.yaml", body: "log:\n  level: info\n---\nlog:\n  level: debug\n", wantMsg: "multiple documents"},
		{name: "not yaml extension", file: "c.json", body: "{}", wantErr: ErrUnsupportedFormat},
		{name: "bad duration", file: "c.yml", body: "probe:\n  timeout: soon\n", wantMsg: "strict config parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeConfig(t, tt.file, tt.body), "dev").Load()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader(writeConfig(t, "empty.yaml", ""), "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().API, cfg.API)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		field  string
	}{
		{name: "zero probe timeout", mutate: func(c *AppConfig) { c.Probe.Timeout = 0 }, field: "probe.timeout"},
		{name: "negative sample", mutate: func(c *AppConfig) { c.Probe.SampleBytes = -1 }, field: "probe.sampleBytes"},
		{name: "zero concurrency", mutate: func(c *AppConfig) { c.Probe.Concurrency = 0 }, field: "probe.concurrency"},
		{name: "zero image timeout", mutate: func(c *AppConfig) { c.Images.FetchTimeout = 0 }, field: "images.fetchTimeout"},
		{name: "bad cidr", mutate: func(c *AppConfig) { c.Images.AllowCIDRs = []string{"nope"} }, field: "images.allowCidrs"},
		{name: "redis without addr", mutate: func(c *AppConfig) { c.Cache.Backend = CacheBackendRedis }, field: "cache.redisAddr"},
		{name: "unknown backend", mutate: func(c *AppConfig) { c.Cache.Backend = "disk" }, field: "cache.backend"},
		{name: "bad log level", mutate: func(c *AppConfig) { c.Log.Level = "loud" }, field: "log.level"},
		{name: "catalog scheme", mutate: func(c *AppConfig) { c.Catalog.BaseURL = "ftp://x" }, field: "catalog.baseUrl"},
		{name: "sampling rate", mutate: func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.SamplingRate = 2
		}, field: "telemetry.samplingRate"},
		{name: "listen", mutate: func(c *AppConfig) { c.API.ListenAddr = "8080" }, field: "api.listen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	assert.NoError(t, Validate(Defaults()))
}

func TestValidate_LogLevel(t *testing.T) {
	for _, level := range []string{"", "trace", "DEBUG", "Warn"} {
		cfg := Defaults()
		cfg.Log.Level = level
		assert.NoError(t, Validate(cfg), level)
	}

	cfg := Defaults()
	cfg.Log.Level = "loud"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level: must be one of trace, debug, info, warn, error")
}

func TestUnknownEnvKeys(t *testing.T) {
	l := NewLoader("", "dev")
	_, err := l.Load()
	require.NoError(t, err)

	unknown := l.UnknownEnvKeys([]string{
		"MOONCAKE_PROBE_TIMEOUT=1s",
		"MOONCAKE_PROBE_TIMOUT=1s",
		"HOME=/root",
		"MOONCAKE_ZZZ",
	})
	assert.Equal(t, []string{"MOONCAKE_PROBE_TIMOUT", "MOONCAKE_ZZZ"}, unknown)
}
