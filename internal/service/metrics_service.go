package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/merch-batch-api/internal/models"
)

// Save pipeline outcomes.
const (
	OutcomeSaved    = "saved"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

// MetricsService owns the Prometheus registry. All methods are safe on a nil
// receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	recordSaves     *prometheus.CounterVec
	guardChecks     *prometheus.CounterVec
	batchPosts      *prometheus.CounterVec
	dispatches      *prometheus.CounterVec
	dispatchLatency prometheus.Observer

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		recordSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_record_saves_total",
			Help: "Batch record saves by request type and outcome",
		}, []string{"request_type", "outcome"}),
		guardChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "barcode_guard_checks_total",
			Help: "Barcode used checks by request type and outcome",
		}, []string{"request_type", "outcome"}),
		batchPosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_posts_total",
			Help: "Batches posted by request type",
		}, []string{"request_type"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_dispatches_total",
			Help: "Downstream dispatch attempts by result",
		}, []string{"result"}),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_dispatch_duration_seconds",
			Help:    "Time to render and hand a posted batch downstream",
			Buckets: prometheus.DefBuckets,
		}),
	}
	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency.(prometheus.Collector), m.cacheWrite.(prometheus.Collector), m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		m.recordSaves, m.guardChecks, m.batchPosts, m.dispatches, m.dispatchLatency.(prometheus.Collector),
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordSave counts one pass through the record save pipeline.
func (m *MetricsService) RecordSave(requestType models.RequestType, outcome string) {
	if m == nil {
		return
	}
	m.recordSaves.WithLabelValues(string(requestType), outcome).Inc()
}

// RecordGuard counts one barcode used check.
func (m *MetricsService) RecordGuard(requestType models.RequestType, outcome models.GuardOutcome) {
	if m == nil {
		return
	}
	m.guardChecks.WithLabelValues(string(requestType), string(outcome)).Inc()
}

// RecordPost counts a batch accepted for posting.
func (m *MetricsService) RecordPost(requestType models.RequestType) {
	if m == nil {
		return
	}
	m.batchPosts.WithLabelValues(string(requestType)).Inc()
}

// RecordDispatch counts a dispatch attempt and its duration.
func (m *MetricsService) RecordDispatch(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(result).Inc()
	if duration > 0 {
		m.dispatchLatency.Observe(duration.Seconds())
	}
}
