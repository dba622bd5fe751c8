package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes recorded against advisor_queries_total.
const (
	QueryOutcomeGenerated = "generated"
	QueryOutcomeRefused   = "refused"
	QueryOutcomeFallback  = "fallback"
	QueryOutcomeFailed    = "failed"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the advisory pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	queryTotal         *prometheus.CounterVec
	generationDuration prometheus.Observer
	guardrailRejects   prometheus.Counter
	actionTotal        *prometheus.CounterVec
	actionsSwept       prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	queryTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_queries_total",
		Help: "Advisory queries by outcome",
	}, []string{"outcome"})

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "advisor_generation_duration_seconds",
		Help:    "Latency of answer generation calls",
		Buckets: prometheus.DefBuckets,
	})

	guardrailRejects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "advisor_guardrail_rejections_total",
		Help: "Generated answers rejected by the guardrail filter",
	})

	actionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pending_actions_total",
		Help: "Pending-action transitions by resulting state",
	}, []string{"state"})

	actionsSwept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pending_actions_swept_total",
		Help: "Overdue pending actions expired by the sweeper",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio,
		cacheHits, cacheMisses, queryTotal, generationDuration, guardrailRejects,
		actionTotal, actionsSwept, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		queryTotal:         queryTotal,
		generationDuration: generationDuration,
		guardrailRejects:   guardrailRejects,
		actionTotal:        actionTotal,
		actionsSwept:       actionsSwept,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// RecordQuery counts an advisory query by outcome.
func (m *MetricsService) RecordQuery(outcome string) {
	if m == nil {
		return
	}
	m.queryTotal.WithLabelValues(outcome).Inc()
}

// ObserveGeneration records one generation round-trip.
func (m *MetricsService) ObserveGeneration(duration time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.Observe(duration.Seconds())
}

// RecordGuardrailRejection counts a rejected generation.
func (m *MetricsService) RecordGuardrailRejection() {
	if m == nil {
		return
	}
	m.guardrailRejects.Inc()
}

// RecordActionTransition counts a pending action entering a state.
func (m *MetricsService) RecordActionTransition(state string) {
	if m == nil {
		return
	}
	m.actionTotal.WithLabelValues(state).Inc()
}

// RecordSweep counts actions expired by the background sweeper.
func (m *MetricsService) RecordSweep(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.actionsSwept.Add(float64(count))
}
