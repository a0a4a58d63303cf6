package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver/mw"
	"github.com/MrSnakeDoc/restreamer/internal/logger"
)

const maxPatchBody = 4 << 10

type streamerResponse struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Description string `json:"description"`
	Key         bool   `json:"key"`
	Enabled     bool   `json:"enabled"`
}

// ListStreamers returns every relay in configuration order. The key
// itself is never exposed, only whether one is set.
func ListStreamers(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows := d.Relays.List()
		out := make([]streamerResponse, 0, len(rows))
		for _, v := range rows {
			out = append(out, streamerResponse{
				ID:          v.ID,
				Source:      v.Source,
				Description: v.Description,
				Key:         v.HasKey,
				Enabled:     v.Enabled,
			})
		}

		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(out); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}

// PatchStreamer validates a {"enable": bool} body and posts the change to
// the event loop. Nothing reaches the loop unless the id is known and the
// body is well formed.
func PatchStreamer(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !d.Relays.Has(id) {
			mw.WriteError(w, http.StatusNotFound, "unknown streamer")
			return
		}

		enabled, err := parseEnablePatch(http.MaxBytesReader(w, r.Body, maxPatchBody))
		if err != nil {
			d.Logger.Debug("rejected streamer patch",
				logger.String("relay", id),
				logger.Error(err))
			mw.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := d.Changes.Post(domain.EnableChange(id, enabled)); err != nil {
			d.Logger.Warn("failed to post streamer change",
				logger.String("relay", id),
				logger.Error(err))
			mw.WriteError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// Preflight answers CORS preflight requests; the headers come from the
// CORS middleware.
func Preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

var (
	errEmptyBody    = errors.New("empty body")
	errEmptyDelta   = errors.New("no field to change")
	errNotBool      = errors.New(`"enable" must be a boolean`)
	errTrailingData = errors.New("unexpected data after JSON object")
)

// parseEnablePatch accepts exactly one JSON object whose only field is a
// boolean "enable".
func parseEnablePatch(body io.Reader) (bool, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return false, fmt.Errorf("failed to read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, errEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return false, fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return false, errTrailingData
	}
	if len(fields) == 0 {
		return false, errEmptyDelta
	}

	var enabled *bool
	for name, raw := range fields {
		if name != "enable" {
			return false, fmt.Errorf("unknown field %q", name)
		}
		var v bool
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) || json.Unmarshal(raw, &v) != nil {
			return false, errNotBool
		}
		enabled = &v
	}
	return *enabled, nil
}
