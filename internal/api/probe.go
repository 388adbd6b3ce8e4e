// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/mooncake/internal/catalog"
	"github.com/ManuGH/mooncake/internal/log"
	"github.com/ManuGH/mooncake/internal/probe"
)

type probeRequest struct {
	URLs []string `json:"urls"`
}

// mediaView is a catalog item with its optional probe result.
type mediaView struct {
	catalog.Media
	Probe *probe.Result `json:"probe,omitempty"`
}

type mediaList struct {
	Items []mediaView `json:"items"`
}

// handleProbe probes an explicit candidate list. Probe failures are results,
// not HTTP errors.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var req probeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxProbeBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, r, "invalid probe request body")
		return
	}
	if len(req.URLs) > s.cfg.MaxProbeURLs {
		badRequest(w, r, fmt.Sprintf("at most %d urls per probe", s.cfg.MaxProbeURLs))
		return
	}
	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}

	res := s.deps.Probe.Probe(r.Context(), urls)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMediaProbe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := s.deps.Catalog.Item(r.Context(), id)
	if err != nil {
		s.catalogError(w, r, err)
		return
	}
	res := s.deps.Probe.Probe(r.Context(), m.CandidateURLs())
	writeJSON(w, http.StatusOK, mediaView{Media: m, Probe: &res})
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Catalog.Random(r.Context())
	if err != nil {
		s.catalogError(w, r, err)
		return
	}
	s.writeMediaList(w, r, items)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.catalogError(w, r, err)
		return
	}
	s.writeMediaList(w, r, items)
}

// writeMediaList probes every item in parallel when ?probe=1 is set.
func (s *Server) writeMediaList(w http.ResponseWriter, r *http.Request, items []catalog.Media) {
	out := mediaList{Items: make([]mediaView, len(items))}
	for i, m := range items {
		out.Items[i].Media = m
	}
	if wantProbe(r) && s.deps.Probe != nil && len(items) > 0 {
		work := make([]probe.Item, len(items))
		for i, m := range items {
			work[i] = probe.Item{ID: m.MCID, Candidates: m.CandidateURLs()}
		}
		for i, res := range s.deps.Probe.ProbeMany(r.Context(), work) {
			out.Items[i].Probe = &res
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) catalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrEmptyID):
		badRequest(w, r, "media id is required")
	case errors.Is(err, catalog.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, "media/not_found", "MEDIA_NOT_FOUND", "media not found")
	case r.Context().Err() != nil:
		// client went away
	default:
		logger := log.WithContext(r.Context(), s.logger)
		logger.Warn().Err(err).Str(log.FieldEvent, "catalog.failed").Msg("catalog lookup failed")
		writeProblem(w, r, http.StatusBadGateway, "media/upstream_failed", "CATALOG_UNAVAILABLE", "catalog lookup failed")
	}
}
