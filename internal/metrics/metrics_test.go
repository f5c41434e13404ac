package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Expansion("success", 120*time.Millisecond)
	m.Expansion("error", 0)
	m.Expansion("error", 0)
	m.SetNodes(6)
	m.Frame()
	m.Burrow()
	m.StreamClients(2)
	m.StreamClients(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.expansions.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.expansions.WithLabelValues("error")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.nodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.burrows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.streamClients))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Expansion("success", time.Second)
	m.SetNodes(1)
	m.Frame()
	m.Burrow()
	m.StreamClients(1)
}

func TestHandler(t *testing.T) {
	m := New()
	m.Burrow()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "habitat_burrows_total 1")
}
