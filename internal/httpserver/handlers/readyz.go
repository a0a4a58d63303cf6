package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/restreamer/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready  bool `json:"ready"`
	Relays int  `json:"relays"`
}

// Readyz reports ready once the orchestrator loop runs.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := d.Ready != nil && d.Ready()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(readyzResponse{
			Ready:  ready,
			Relays: d.Relays.Count(),
		})
	}
}
