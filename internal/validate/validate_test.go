// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Accumulates(t *testing.T) {
	v := New()
	v.URL("catalog.baseUrl", "ftp://example.com", []string{"http", "https"})
	v.ListenAddr("api.listen", "localhost")
	v.Positive("probe.concurrency", 0)
	v.PositiveDuration("probe.timeout", 0)
	v.PositiveInt64("images.maxBytes", -1)
	v.FloatRange("telemetry.samplingRate", 1.5, 0, 1)
	v.OneOf("cache.backend", "disk", []string{"memory", "redis", "none"})
	v.CIDR("images.allowCidrs", "10.0.0.0/33")

	require.False(t, v.IsValid())
	err := v.Err()
	require.Error(t, err)

	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Errors()))
	for _, e := range verr.Errors() {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{
		"catalog.baseUrl",
		"api.listen",
		"probe.concurrency",
		"probe.timeout",
		"images.maxBytes",
		"telemetry.samplingRate",
		"cache.backend",
		"images.allowCidrs",
	}, fields)
	assert.Contains(t, err.Error(), "; ")
}

func TestValidator_AcceptsValidValues(t *testing.T) {
	v := New()
	v.URL("u", "https://api.example/v1", []string{"https"})
	v.ListenAddr("a", ":8080")
	v.ListenAddr("b", "127.0.0.1:0")
	v.Range("r", 3, 0, 10)
	v.NotEmpty("s", "x")
	v.NonNegative("n", 0)
	v.PositiveDuration("d", time.Second)
	v.CIDR("c", "127.0.0.0/8")
	v.CIDR("ip", "::1")

	assert.True(t, v.IsValid())
	assert.NoError(t, v.Err())
}

func TestValidationError_Single(t *testing.T) {
	v := New()
	v.NotEmpty("name", "  ")
	assert.Equal(t, "validation failed for name: value cannot be empty", v.Err().Error())
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	_, err = ParseLogLevel("loud")
	assert.Error(t, err)
}

func TestValidator_Custom(t *testing.T) {
	even := func(value any) error {
		if n, _ := value.(int); n%2 != 0 {
			return errors.New("must be even")
		}
		return nil
	}

	v := New()
	v.Custom("probe.concurrency", 4, even)
	assert.True(t, v.IsValid())

	v.Custom("probe.concurrency", 3, even)
	require.False(t, v.IsValid())
	assert.Equal(t, "validation failed for probe.concurrency: must be even", v.Err().Error())
}
