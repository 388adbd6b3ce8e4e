// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the mooncake HTTP API: probes, media lookup, the image
// cache and the image proxy.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/mooncake/internal/api/middleware"
	"github.com/ManuGH/mooncake/internal/log"
)

const (
	// DefaultMaxProbeURLs caps the candidate list of one probe request.
	DefaultMaxProbeURLs = 32
	maxProbeBody        = 64 << 10
)

// Config configures the HTTP surface.
type Config struct {
	Version      string
	Stack        middleware.StackConfig
	MaxProbeURLs int
	// ImageRateLimit caps, per client IP and minute, the routes that can
	// create image cache entries. 0 disables.
	ImageRateLimit int
}

// Server is the mooncake HTTP API.
type Server struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

// New returns a Server for deps.
func New(cfg Config, deps Deps) *Server {
	if cfg.MaxProbeURLs <= 0 {
		cfg.MaxProbeURLs = DefaultMaxProbeURLs
	}
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithComponent("api"),
	}
}

// Handler returns the configured HTTP handler with all routes and middleware applied.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(s.cfg.Stack)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeProblem(w, req, http.StatusNotFound, "system/not_found", "NOT_FOUND", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeProblem(w, req, http.StatusMethodNotAllowed, "system/method_not_allowed", "METHOD_NOT_ALLOWED", "")
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.deps.Probe != nil {
			r.Post("/probe", s.handleProbe)
		}
		if s.deps.Catalog != nil {
			r.Get("/media/random", s.handleRandom)
			r.Get("/media/search", s.handleSearch)
			if s.deps.Probe != nil {
				r.Get("/media/{id}/probe", s.handleMediaProbe)
			}
		}
		limited := r
		if s.cfg.ImageRateLimit > 0 {
			limited = r.With(middleware.APIRateLimit(s.cfg.ImageRateLimit))
		}
		if s.deps.Images != nil {
			limited.Get("/images", s.handleImage)
			r.Delete("/images", s.handleImageEvict)
			r.Get("/images/stats", s.handleImageStats)
		}
		if s.deps.Fetcher != nil {
			limited.Get("/proxy/image", s.handleProxyImage)
		}
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.cfg.Version,
	})
}
