package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver/deps"
)

type componentStatus struct {
	OK             bool   `json:"ok"`
	Running        *int   `json:"running,omitempty"`
	RestartPending *int   `json:"restart_pending,omitempty"`
	Stopped        *int   `json:"stopped,omitempty"`
	Backlog        *int   `json:"backlog,omitempty"`
	LastUpdate     string `json:"last_update,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Error          string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		running := d.Relays.CountByState(domain.Running)
		pending := d.Relays.CountByState(domain.RestartPending)
		stopped := d.Relays.CountByState(domain.Stopped)
		lastUpdate := "never"
		if t := d.Relays.GetLastUpdate(); !t.IsZero() {
			lastUpdate = t.Format("2006-01-02 15:04:05")
		}

		orch := componentStatus{
			OK:             d.Ready != nil && d.Ready(),
			Running:        &running,
			RestartPending: &pending,
			Stopped:        &stopped,
			LastUpdate:     lastUpdate,
		}
		if d.Backlog != nil {
			backlog := d.Backlog()
			orch.Backlog = &backlog
		}

		components := map[string]componentStatus{
			"orchestrator":   orch,
			"identity_store": checkStore(r.Context(), d),
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(infraResponse{
			Status:     determineStatus(components),
			Components: components,
		})
	}
}

func determineStatus(components map[string]componentStatus) string {
	orch := components["orchestrator"]
	if !orch.OK {
		return "critical"
	}
	if st := components["identity_store"]; !st.OK {
		return "degraded"
	}
	if orch.RestartPending != nil && *orch.RestartPending > 0 {
		return "degraded"
	}
	return "healthy"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Error: "store not initialized"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: d.Store.Backend(), Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: d.Store.Backend()}
}
