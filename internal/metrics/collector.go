// Package metrics exposes Prometheus counters and histograms for the gateway.
// All Collector methods are safe on a nil receiver, so components run without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Synthesis outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRepaired = "repaired"
	OutcomeFallback = "fallback"
)

// Collector holds the gateway's metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	upstreamRequestsTotal *prometheus.CounterVec
	upstreamDuration      *prometheus.HistogramVec

	modelFallthrough  *prometheus.CounterVec
	synthesisOutcomes *prometheus.CounterVec
	budgetTruncations prometheus.Counter

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry, including Go and process collectors.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		upstreamRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream calls by kind and status (status is \"error\" for transport failures)",
		}, []string{"kind", "status"}),
		upstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Upstream call duration in seconds, retries included",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),
		modelFallthrough: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_fallthrough_total",
			Help:      "Model candidates skipped because the endpoint did not serve them",
		}, []string{"model"}),
		synthesisOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_outcomes_total",
			Help:      "Synthesis results by outcome",
		}, []string{"outcome"}),
		budgetTruncations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_truncations_total",
			Help:      "Synthesis requests whose input was truncated",
		}),
		cacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_hits_total",
			Help:      "Query embedding cache hits",
		}, []string{"backend"}),
		cacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_misses_total",
			Help:      "Query embedding cache misses",
		}, []string{"backend"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(route, method string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveUpstream records one gateway call. A status of 0 means a transport failure.
func (c *Collector) ObserveUpstream(kind string, status int, d time.Duration) {
	if c == nil {
		return
	}
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	c.upstreamRequestsTotal.WithLabelValues(kind, label).Inc()
	c.upstreamDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncFallthrough counts a skipped model candidate.
func (c *Collector) IncFallthrough(model string) {
	if c == nil {
		return
	}
	c.modelFallthrough.WithLabelValues(model).Inc()
}

// IncSynthesis counts a synthesis outcome.
func (c *Collector) IncSynthesis(outcome string) {
	if c == nil {
		return
	}
	c.synthesisOutcomes.WithLabelValues(outcome).Inc()
}

// IncTruncation counts a budgeted request that lost content.
func (c *Collector) IncTruncation() {
	if c == nil {
		return
	}
	c.budgetTruncations.Inc()
}

// ObserveCache records a cache lookup.
func (c *Collector) ObserveCache(backend string, hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.cacheHits.WithLabelValues(backend).Inc()
		return
	}
	c.cacheMisses.WithLabelValues(backend).Inc()
}
