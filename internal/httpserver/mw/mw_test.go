package mw

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/restreamer/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, method, target string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCORSPreflight(t *testing.T) {
	h := CORS("*")(okHandler)

	rec := serve(h, http.MethodOptions, "/api/streamers/x", nil)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Empty(t, rec.Header().Get("Vary"))

	rec = serve(h, http.MethodGet, "/api/streamers", nil)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSSpecificOriginVaries(t *testing.T) {
	rec := serve(CORS("https://ui.example")(okHandler), http.MethodGet, "/", nil)
	assert.Equal(t, "https://ui.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORSDisabled(t *testing.T) {
	rec := serve(CORS("")(okHandler), http.MethodOptions, "/", nil)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestJSONNoStore(t *testing.T) {
	rec := serve(JSONNoStore(okHandler), http.MethodGet, "/", nil)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"bad"}`, rec.Body.String())
}

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"restreamer.lan", "restreamer.lan", true},
		{"a.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"evil.com", "restreamer.lan", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchHost(tt.host, tt.pattern), "%s vs %s", tt.host, tt.pattern)
	}
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"Restreamer.LAN", "*.example.com"}, logger.Nop())(okHandler)

	withHost := func(host string) func(*http.Request) {
		return func(r *http.Request) { r.Host = host }
	}

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/", withHost("restreamer.lan:4000")).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/", withHost("cam.example.com")).Code)
	assert.Equal(t, http.StatusForbidden, serve(h, http.MethodGet, "/", withHost("other.lan")).Code)
}

func TestEnforceHostPassthroughWhenEmpty(t *testing.T) {
	h := EnforceHost(nil, logger.Nop())(okHandler)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/", nil).Code)
}

type fakeNow struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeNow) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestRateLimitRefills(t *testing.T) {
	clk := &fakeNow{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	h := RateLimit(RateLimitConfig{Burst: 2, RefillPerIPPerMin: 60, Now: clk.Now})(okHandler)

	rec := serve(h, http.MethodPatch, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusOK, serve(h, http.MethodPatch, "/", nil).Code)

	rec = serve(h, http.MethodPatch, "/", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// One token per second.
	clk.Add(time.Second)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPatch, "/", nil).Code)
}

func TestRateLimitIsPerClient(t *testing.T) {
	clk := &fakeNow{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	h := RateLimit(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 1, Now: clk.Now})(okHandler)

	from := func(addr string) func(*http.Request) {
		return func(r *http.Request) { r.RemoteAddr = addr }
	}

	assert.Equal(t, http.StatusOK, serve(h, http.MethodPatch, "/", from("10.0.0.1:1000")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodPatch, "/", from("10.0.0.1:1001")).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPatch, "/", from("10.0.0.2:1000")).Code)
}

func TestRateLimitTableStaysBounded(t *testing.T) {
	clk := &fakeNow{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newClientLimiter(RateLimitConfig{Burst: 1, RefillPerIPPerMin: 1, MaxEntries: 2, Now: clk.Now})

	ok, _, _ := l.allow("10.0.0.1", clk.Now())
	require.True(t, ok)
	clk.Add(time.Second)
	ok, _, _ = l.allow("10.0.0.2", clk.Now())
	require.True(t, ok)
	clk.Add(time.Second)

	// Nobody is idle yet, so the least recently seen client makes room.
	ok, _, _ = l.allow("10.0.0.3", clk.Now())
	require.True(t, ok)

	l.mu.Lock()
	assert.Len(t, l.clients, 2)
	assert.NotContains(t, l.clients, "10.0.0.1")
	assert.Contains(t, l.clients, "10.0.0.2")
	l.mu.Unlock()

	// A returning client is still served while the table stays bounded.
	clk.Add(time.Second)
	ok, _, _ = l.allow("10.0.0.1", clk.Now())
	assert.True(t, ok)
	l.mu.Lock()
	assert.Len(t, l.clients, 2)
	l.mu.Unlock()
}
