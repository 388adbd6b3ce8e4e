// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_ReloadNotifiesListeners(t *testing.T) {
	path := writeConfig(t, "c.yaml", "playback:\n  maxRecoveries: 3\n")
	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader, path)
	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte("playback:\n  maxRecoveries: 5\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, 5, h.Get().Playback.MaxRecoveries)
	select {
	case got := <-ch:
		assert.Equal(t, 5, got.Playback.MaxRecoveries)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolder_FailedReloadKeepsOldConfig(t *testing.T) {
	path := writeConfig(t, "c.yaml", "probe:\n  timeout: 4s\n")
	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader, path)

	require.NoError(t, os.WriteFile(path, []byte("probe:\n  timeout: -1s\n"), 0o600))
	assert.Error(t, h.Reload(context.Background()))
	assert.Equal(t, 4*time.Second, h.Get().Probe.Timeout)
}

func TestHolder_WatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "c.yaml", "log:\n  level: info\n")
	loader := NewLoader(path, "dev")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader, path)
	h.debounce = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))
	defer h.Stop()

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))
	assert.Eventually(t, func() bool { return h.Get().Log.Level == "debug" }, 3*time.Second, 20*time.Millisecond)
}

func TestHolder_WatcherDisabledWithoutFile(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", "dev"), "")
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Stop()
}
