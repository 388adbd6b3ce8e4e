// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ManuGH/mooncake/internal/imagecache"
	"github.com/ManuGH/mooncake/internal/imageproxy"
	"github.com/ManuGH/mooncake/internal/log"
	platformnet "github.com/ManuGH/mooncake/internal/platform/net"
	"github.com/ManuGH/mooncake/internal/resilience"
)

func imageURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	u := strings.TrimSpace(r.URL.Query().Get("url"))
	if u == "" {
		badRequest(w, r, "url query parameter is required")
		return "", false
	}
	return u, true
}

// handleImage serves the cached bytes for url, fetching on first request.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	u, ok := imageURL(w, r)
	if !ok {
		return
	}

	var (
		h    *imagecache.Handle
		data []byte
		err  error
	)
	// A concurrent eviction can release the handle between Get and Bytes.
	for attempt := 0; attempt < 2; attempt++ {
		if h, err = s.deps.Images.Get(r.Context(), u); err != nil {
			break
		}
		if data, err = h.Bytes(); !errors.Is(err, imagecache.ErrReleased) {
			break
		}
	}
	if err != nil {
		s.imageError(w, r, u, err)
		return
	}

	etag := `"` + h.ID() + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", h.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if b := h.Bounds(); !b.Empty() {
		w.Header().Set("X-Image-Size", strconv.Itoa(b.Dx())+"x"+strconv.Itoa(b.Dy()))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) imageError(w http.ResponseWriter, r *http.Request, u string, err error) {
	switch {
	case r.Context().Err() != nil:
		return
	case errors.Is(err, imagecache.ErrImageDecode):
		writeProblem(w, r, http.StatusBadGateway, "image/decode_failed", "IMAGE_DECODE_FAILED", err.Error())
	case errors.Is(err, imagecache.ErrImageFetch):
		writeProblem(w, r, http.StatusBadGateway, "image/fetch_failed", "IMAGE_FETCH_FAILED", err.Error())
	case errors.Is(err, imagecache.ErrClosed):
		writeProblem(w, r, http.StatusServiceUnavailable, "system/shutting_down", "SHUTTING_DOWN", "")
	default:
		logger := log.WithContext(r.Context(), s.logger)
		logger.Error().Err(err).
			Str(log.FieldEvent, "image.serve_failed").
			Str(log.FieldURL, platformnet.SanitizeURL(u)).
			Msg("image request failed")
		writeProblem(w, r, http.StatusInternalServerError, "system/internal", "INTERNAL", "")
	}
}

// handleImageEvict drops a settled entry so the next request refetches.
func (s *Server) handleImageEvict(w http.ResponseWriter, r *http.Request) {
	u, ok := imageURL(w, r)
	if !ok {
		return
	}
	if !s.deps.Images.Evict(u) {
		writeProblem(w, r, http.StatusNotFound, "image/not_cached", "IMAGE_NOT_CACHED",
			"no settled entry for url")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImageStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Images.Stats())
}

// handleProxyImage fetches url upstream and returns it base64 encoded, the
// payload shape a remote image cache consumes.
func (s *Server) handleProxyImage(w http.ResponseWriter, r *http.Request) {
	u, ok := imageURL(w, r)
	if !ok {
		return
	}
	data, contentType, err := s.deps.Fetcher.Fetch(r.Context(), u)
	if err != nil {
		s.proxyError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	writeJSON(w, http.StatusOK, imageproxy.Encode(data, contentType))
}

func (s *Server) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case r.Context().Err() != nil:
		return
	case errors.Is(err, imageproxy.ErrInvalidURL):
		badRequest(w, r, err.Error())
	case errors.Is(err, imageproxy.ErrNotAllowed):
		writeProblem(w, r, http.StatusForbidden, "image/not_allowed", "IMAGE_URL_NOT_ALLOWED", err.Error())
	case errors.Is(err, resilience.ErrCircuitOpen):
		w.Header().Set("Retry-After", "30")
		writeProblem(w, r, http.StatusServiceUnavailable, "image/upstream_unavailable", "UPSTREAM_CIRCUIT_OPEN", err.Error())
	case errors.Is(err, imageproxy.ErrTooLarge):
		writeProblem(w, r, http.StatusBadGateway, "image/too_large", "IMAGE_TOO_LARGE", err.Error())
	default:
		writeProblem(w, r, http.StatusBadGateway, "image/fetch_failed", "IMAGE_FETCH_FAILED", err.Error())
	}
}
