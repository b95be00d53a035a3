package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/gradebook-sync-api/internal/scheduler"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	flushDuration    prometheus.Histogram
	flushTotal       *prometheus.CounterVec
	flushRows        *prometheus.CounterVec
	platformDuration *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec
	syncStudents     *prometheus.CounterVec

	requestCount    uint64
	flushCount      uint64
	flushFailures   uint64
	cacheHitCount   uint64
	cacheMissCount  uint64
	syncedStudents  uint64
	skippedStudents uint64
	failedStudents  uint64
}

// MetricsSnapshot is a point-in-time summary of process counters.
type MetricsSnapshot struct {
	RequestsTotal   uint64    `json:"requests_total"`
	FlushesTotal    uint64    `json:"flushes_total"`
	FlushFailures   uint64    `json:"flush_failures"`
	CacheHits       uint64    `json:"cache_hits"`
	CacheMisses     uint64    `json:"cache_misses"`
	SyncedStudents  uint64    `json:"synced_students"`
	SkippedStudents uint64    `json:"skipped_students"`
	FailedStudents  uint64    `json:"failed_students"`
	Goroutines      int       `json:"goroutines"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	flushDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gradebook_flush_duration_seconds",
		Help:    "Duration of grade flushes",
		Buckets: prometheus.DefBuckets,
	})

	flushTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gradebook_flushes_total",
		Help: "Grade flushes by outcome",
	}, []string{"outcome"})

	flushRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gradebook_flush_rows_total",
		Help: "Grade rows written by flushes",
	}, []string{"op"})

	platformDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "platform_request_duration_seconds",
		Help:    "Duration of classroom platform requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	breakerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "platform_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	syncStudents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gradebook_sync_students_total",
		Help: "Students processed by platform syncs by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		flushDuration, flushTotal, flushRows, platformDuration, breakerState, syncStudents, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		flushDuration:    flushDuration,
		flushTotal:       flushTotal,
		flushRows:        flushRows,
		platformDuration: platformDuration,
		breakerState:     breakerState,
		syncStudents:     syncStudents,
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

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveFlush implements scheduler.Observer.
func (m *MetricsService) ObserveFlush(result scheduler.FlushResult) {
	if m == nil {
		return
	}
	outcome := "success"
	if result.Err != nil {
		outcome = "failure"
		atomic.AddUint64(&m.flushFailures, 1)
	}
	atomic.AddUint64(&m.flushCount, 1)
	m.flushTotal.WithLabelValues(outcome).Inc()
	m.flushDuration.Observe(result.Duration.Seconds())
	if result.Err == nil {
		m.flushRows.WithLabelValues("upsert").Add(float64(result.Upserted))
		m.flushRows.WithLabelValues("delete").Add(float64(result.Deleted))
	}
}

// ObservePlatformRequest implements platform.Observer.
func (m *MetricsService) ObservePlatformRequest(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.platformDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// SetBreakerState implements platform.Observer.
func (m *MetricsService) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}

// ObserveSync records per-student outcomes of a sync run.
func (m *MetricsService) ObserveSync(successful, skipped, failed int) {
	if m == nil {
		return
	}
	m.syncStudents.WithLabelValues("success").Add(float64(successful))
	m.syncStudents.WithLabelValues("skipped").Add(float64(skipped))
	m.syncStudents.WithLabelValues("failed").Add(float64(failed))
	atomic.AddUint64(&m.syncedStudents, uint64(successful))
	atomic.AddUint64(&m.skippedStudents, uint64(skipped))
	atomic.AddUint64(&m.failedStudents, uint64(failed))
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		RequestsTotal:   atomic.LoadUint64(&m.requestCount),
		FlushesTotal:    atomic.LoadUint64(&m.flushCount),
		FlushFailures:   atomic.LoadUint64(&m.flushFailures),
		CacheHits:       atomic.LoadUint64(&m.cacheHitCount),
		CacheMisses:     atomic.LoadUint64(&m.cacheMissCount),
		SyncedStudents:  atomic.LoadUint64(&m.syncedStudents),
		SkippedStudents: atomic.LoadUint64(&m.skippedStudents),
		FailedStudents:  atomic.LoadUint64(&m.failedStudents),
		Goroutines:      runtime.NumGoroutine(),
		GeneratedAt:     time.Now().UTC(),
	}
}
