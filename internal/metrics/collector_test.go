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

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test")

	c.ObserveUpstream("chat", 404, 10*time.Millisecond)
	c.ObserveUpstream("chat", 0, time.Second)
	c.IncFallthrough("m1")
	c.IncSynthesis(OutcomeRepaired)
	c.IncTruncation()
	c.ObserveCache("memory", true)
	c.ObserveCache("memory", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.upstreamRequestsTotal.WithLabelValues("chat", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.upstreamRequestsTotal.WithLabelValues("chat", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.modelFallthrough.WithLabelValues("m1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.synthesisOutcomes.WithLabelValues(OutcomeRepaired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.budgetTruncations))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheMisses.WithLabelValues("memory")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("kangae")
	c.ObserveHTTP("/embed", http.MethodPost, http.StatusOK, 5*time.Millisecond)

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `kangae_http_requests_total{method="POST",route="/embed",status="200"} 1`)
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveHTTP("/x", "GET", 200, time.Millisecond)
		c.ObserveUpstream("embed", 200, time.Millisecond)
		c.IncFallthrough("m")
		c.IncSynthesis(OutcomeOK)
		c.IncTruncation()
		c.ObserveCache("redis", true)
	})
	assert.Nil(t, c.Registry())
}
