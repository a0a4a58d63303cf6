package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayCounters(t *testing.T) {
	m := New()

	m.RelayStarted("a")
	m.RelayStarted("a")
	m.RelayFailed("a")
	m.RestartScheduled("a")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.starts.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.restarts.WithLabelValues("a")))
}

func TestStateCounts(t *testing.T) {
	m := New()

	m.StateCounts(3, 1, 2)
	m.StateCounts(2, 0, 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.relays.WithLabelValues("running")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.relays.WithLabelValues("restart_pending")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.relays.WithLabelValues("stopped")))
}

func TestTogglesAndReloads(t *testing.T) {
	m := New()

	m.ChangeApplied("a", true)
	m.ChangeApplied("a", false)
	m.ChangeApplied("b", false)
	m.ReloadFinished(nil)
	m.ReloadFinished(errors.New("boom"))
	m.IdentitiesSaved(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.toggles.WithLabelValues("enable")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.toggles.WithLabelValues("disable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues("error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.identity))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RelayStarted("front-door")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `restreamer_relay_starts_total{relay="front-door"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
