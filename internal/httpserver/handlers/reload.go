package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/restreamer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/restreamer/internal/logger"
)

type reloadResponse struct {
	Status string `json:"status"`
}

// Reload queues a reload of the relays file
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		status := http.StatusAccepted
		body := reloadResponse{Status: "reload queued"}
		if d.Reloader.Trigger() {
			d.Logger.Info("manual reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
		} else {
			d.Logger.Warn("reload already queued",
				logger.String("remote_ip", r.RemoteAddr))
			status = http.StatusTooManyRequests
			body.Status = "reload already queued"
		}

		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}
