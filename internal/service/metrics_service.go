package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/classly/scheduling-engine/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the engine.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration    *prometheus.HistogramVec
	httpTotal       *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec
	conflictsTotal  *prometheus.CounterVec
	commitConflicts prometheus.Counter
	candidatesSeen  prometheus.Counter
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_requests_total",
		Help: "Total scheduling requests by operation and terminal status",
	}, []string{"operation", "status"})

	phaseDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduling_phase_duration_seconds",
		Help:    "Duration of orchestrator phases",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	conflictsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_conflicts_total",
		Help: "Detected scheduling conflicts by type and severity",
	}, []string{"type", "severity"})

	commitConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_commit_conflicts_total",
		Help: "Enrollment commits rejected by the optimistic version check",
	})

	candidatesSeen := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduling_candidates_generated_total",
		Help: "Candidate classes generated across all requests",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(httpDuration, httpTotal, requestsTotal, phaseDuration,
		conflictsTotal, commitConflicts, candidatesSeen, cacheLatency, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		httpDuration:    httpDuration,
		httpTotal:       httpTotal,
		requestsTotal:   requestsTotal,
		phaseDuration:   phaseDuration,
		conflictsTotal:  conflictsTotal,
		commitConflicts: commitConflicts,
		candidatesSeen:  candidatesSeen,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
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
	m.httpDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveRequest records a scheduling request reaching a terminal status.
func (m *MetricsService) ObserveRequest(operation models.SchedulingOperation, status models.RequestStatus) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(string(operation), string(status)).Inc()
}

// ObservePhase records the duration of one orchestrator phase.
func (m *MetricsService) ObservePhase(phase models.RequestStatus, duration time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(string(phase)).Observe(duration.Seconds())
}

// ObserveConflict counts one detected conflict.
func (m *MetricsService) ObserveConflict(conflictType models.ConflictType, severity models.ConflictSeverity) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(string(conflictType), string(severity)).Inc()
}

// ObserveCommitConflict counts a rejected optimistic enrollment commit.
func (m *MetricsService) ObserveCommitConflict() {
	if m == nil {
		return
	}
	m.commitConflicts.Inc()
}

// ObserveCandidates counts generated candidate classes.
func (m *MetricsService) ObserveCandidates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.candidatesSeen.Add(float64(n))
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
