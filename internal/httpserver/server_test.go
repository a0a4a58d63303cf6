package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/restreamer/internal/domain"
	"github.com/MrSnakeDoc/restreamer/internal/httpserver/deps"
	"github.com/MrSnakeDoc/restreamer/internal/index"
	"github.com/MrSnakeDoc/restreamer/internal/logger"
	"github.com/MrSnakeDoc/restreamer/internal/metrics"
)

type recordingPoster struct {
	mu      sync.Mutex
	changes []domain.ConfigChange
	err     error
}

func (p *recordingPoster) Post(c domain.ConfigChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.changes = append(p.changes, c)
	return nil
}

func (p *recordingPoster) posted() []domain.ConfigChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ConfigChange(nil), p.changes...)
}

type fakeReloader struct{ queued bool }

func (f *fakeReloader) Trigger() bool {
	if f.queued {
		return false
	}
	f.queued = true
	return true
}

type fakeStore struct{ err error }

func (s fakeStore) Load(context.Context) ([]domain.Identity, error) { return nil, nil }
func (s fakeStore) Save(context.Context, []domain.Identity) error  { return nil }
func (s fakeStore) Ping(context.Context) error                     { return s.err }
func (s fakeStore) Backend() string                                { return "fake" }

type testEnv struct {
	handler http.Handler
	poster  *recordingPoster
	idx     *index.RelayIndex
}

func newTestEnv(t *testing.T, mutate ...func(*deps.Deps)) *testEnv {
	t.Helper()
	idx := index.NewRelayIndex()
	idx.Update([]domain.RelayView{
		{ID: "cam-1", Source: "rtsp://cam1/live", Description: "Front door", HasKey: true, Enabled: true, State: domain.Running},
		{ID: "cam-2", Source: "rtsp://cam2/live", Enabled: false, State: domain.Stopped},
	})
	poster := &recordingPoster{}
	d := deps.Deps{
		Logger:     logger.Nop(),
		StartTime:  time.Now(),
		Version:    "test",
		CORSOrigin: "*",
		RateLimit:  deps.RateLimit{Burst: 100, PerMinute: 100},
		Relays:     idx,
		Changes:    poster,
		Ready:      func() bool { return true },
		Reloader:   &fakeReloader{},
		Store:      fakeStore{},
		Metrics:    metrics.New().Handler(),
	}
	for _, m := range mutate {
		m(&d)
	}
	return &testEnv{handler: NewRouter(logger.Nop(), d), poster: poster, idx: idx}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func assertStreamerHeaders(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestListStreamers(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/api/streamers", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assertStreamerHeaders(t, rr)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, map[string]any{
		"id":          "cam-1",
		"source":      "rtsp://cam1/live",
		"description": "Front door",
		"key":         true,
		"enabled":     true,
	}, got[0])
	assert.Equal(t, "cam-2", got[1]["id"])
	assert.Equal(t, false, got[1]["key"])
	assert.NotContains(t, rr.Body.String(), "state")
}

func TestListStreamersEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.idx.Update(nil)

	rr := env.do(http.MethodGet, "/api/streamers", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestPatchStreamer(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodPatch, "/api/streamers/cam-2", `{"enable": true}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
	assertStreamerHeaders(t, rr)

	posted := env.poster.posted()
	require.Len(t, posted, 1)
	require.Contains(t, posted[0], "cam-2")
	require.NotNil(t, posted[0]["cam-2"].Enabled)
	assert.True(t, *posted[0]["cam-2"].Enabled)
}

func TestPatchUnknownStreamer(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodPatch, "/api/streamers/unknown", `{"enable": true}`)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assertStreamerHeaders(t, rr)
	assert.Empty(t, env.poster.posted())
}

func TestPatchRejectsBadBodies(t *testing.T) {
	cases := map[string]string{
		"empty body":    "",
		"blank body":    "   ",
		"empty object":  "{}",
		"unknown field": `{"enable": true, "name": "x"}`,
		"only unknown":  `{"enabled": true}`,
		"string value":  `{"enable": "true"}`,
		"number value":  `{"enable": 1}`,
		"null value":    `{"enable": null}`,
		"not an object": `[true]`,
		"malformed":     `{"enable": tru`,
		"trailing data": `{"enable": true} {}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)

			rr := env.do(http.MethodPatch, "/api/streamers/cam-1", body)

			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assertStreamerHeaders(t, rr)
			assert.Empty(t, env.poster.posted())
		})
	}
}

func TestPatchWhileShuttingDown(t *testing.T) {
	env := newTestEnv(t)
	env.poster.err = errors.New("orchestrator stopped")

	rr := env.do(http.MethodPatch, "/api/streamers/cam-1", `{"enable": false}`)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/streamers/cam-1", nil)
	req.Header.Set("Origin", "http://ui.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assertStreamerHeaders(t, rr)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Equal(t, "Content-Type", rr.Header().Get("Access-Control-Allow-Headers"))
}

func TestPatchIsRateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *deps.Deps) { d.RateLimit = deps.RateLimit{Burst: 1, PerMinute: 1} })

	first := env.do(http.MethodPatch, "/api/streamers/cam-1", `{"enable": false}`)
	second := env.do(http.MethodPatch, "/api/streamers/cam-1", `{"enable": true}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Len(t, env.poster.posted(), 1)
}

func TestAllowedCIDRS(t *testing.T) {
	env := newTestEnv(t, func(d *deps.Deps) { d.AllowedCIDRS = []string{"10.0.0.0/8"} })

	// httptest requests come from 192.0.2.1.
	rr := env.do(http.MethodGet, "/api/streamers", "")

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAllowedHosts(t *testing.T) {
	env := newTestEnv(t, func(d *deps.Deps) { d.AllowedHosts = []string{"*.lan"} })

	req := httptest.NewRequest(http.MethodGet, "/api/streamers", nil)
	req.Host = "restreamer.lan:4000"
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(http.MethodGet, "/api/streamers", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestReload(t *testing.T) {
	env := newTestEnv(t)

	first := env.do(http.MethodPost, "/api/reload", "")
	second := env.do(http.MethodPost, "/api/reload", "")

	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestReloadDisabled(t *testing.T) {
	env := newTestEnv(t, func(d *deps.Deps) { d.Reloader = nil })

	rr := env.do(http.MethodPost, "/api/reload", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProbes(t *testing.T) {
	ready := false
	env := newTestEnv(t, func(d *deps.Deps) { d.Ready = func() bool { return ready } })

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodGet, "/readyz", "").Code)

	ready = true
	rr := env.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ready": true, "relays": 2}`, rr.Body.String())
}

func TestInfra(t *testing.T) {
	env := newTestEnv(t, func(d *deps.Deps) {
		d.Store = fakeStore{err: errors.New("unreachable")}
		d.Backlog = func() int { return 3 }
	})

	rr := env.do(http.MethodGet, "/infra", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Status     string `json:"status"`
		Components map[string]struct {
			OK      bool   `json:"ok"`
			Running *int   `json:"running"`
			Backlog *int   `json:"backlog"`
			Mode    string `json:"mode"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.True(t, body.Components["orchestrator"].OK)
	require.NotNil(t, body.Components["orchestrator"].Running)
	assert.Equal(t, 1, *body.Components["orchestrator"].Running)
	require.NotNil(t, body.Components["orchestrator"].Backlog)
	assert.Equal(t, 3, *body.Components["orchestrator"].Backlog)
	assert.False(t, body.Components["identity_store"].OK)
	assert.Equal(t, "fake", body.Components["identity_store"].Mode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "restreamer_")
}
