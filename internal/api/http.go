// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/mooncake/internal/api/problem"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, code, detail string) {
	problem.Write(w, r, status, problemType, code, detail)
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusBadRequest, "request/invalid", "INVALID_REQUEST", detail)
}

// wantProbe reports whether the probe query flag is set.
func wantProbe(r *http.Request) bool {
	switch r.URL.Query().Get("probe") {
	case "1", "true", "yes":
		return true
	}
	return false
}
