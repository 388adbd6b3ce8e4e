// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mooncake/internal/config"
)

// ServerConfig holds the API listener settings.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// ServerConfigFrom derives listener settings from the api config section.
func ServerConfigFrom(c config.APIConfig) ServerConfig {
	return ServerConfig{
		ListenAddr:      c.ListenAddr,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	Logger     zerolog.Logger
	APIHandler http.Handler
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate(cfg ServerConfig) error {
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return ErrMissingListenAddr
	}
	return nil
}
