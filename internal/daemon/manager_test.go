// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:      "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 2 * time.Second,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(testServerConfig(), Deps{Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, ErrMissingAPIHandler)

	cfg := testServerConfig()
	cfg.ListenAddr = " "
	_, err = NewManager(cfg, Deps{Logger: zerolog.Nop(), APIHandler: okHandler()})
	assert.ErrorIs(t, err, ErrMissingListenAddr)

	m, err := NewManager(testServerConfig(), Deps{Logger: zerolog.Nop(), APIHandler: okHandler()})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManager_ServesAndShutsDownWithHooksLIFO(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m, err := NewManager(testServerConfig(), Deps{Logger: zerolog.Nop(), APIHandler: okHandler()})
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []string
	)
	for _, name := range []string{"images", "probe"} {
		m.RegisterShutdownHook(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	addr, err := m.Addr(waitCtx)
	require.NoError(t, err)

	client := &http.Client{Timeout: time.Second, Transport: &http.Transport{}}
	res, err := client.Get("http://" + addr.String() + "/")
	require.NoError(t, err)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	assert.Equal(t, []string{"probe", "images"}, order)

	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)
	assert.NoError(t, m.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestManager_HookErrorsAreJoined(t *testing.T) {
	m, err := NewManager(testServerConfig(), Deps{Logger: zerolog.Nop(), APIHandler: okHandler()})
	require.NoError(t, err)
	boom := errors.New("boom")
	m.RegisterShutdownHook("bad", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Start(ctx)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "hook bad")
}

func TestManager_ListenFailure(t *testing.T) {
	cfg := testServerConfig()
	cfg.ListenAddr = "256.0.0.1:0"
	m, err := NewManager(cfg, Deps{Logger: zerolog.Nop(), APIHandler: okHandler()})
	require.NoError(t, err)
	assert.Error(t, m.Start(context.Background()))
}
