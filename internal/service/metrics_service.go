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

// MetricsService encapsulates Prometheus instrumentation for the media API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheHitRatio   prometheus.Gauge
	uploadsTotal    *prometheus.CounterVec
	deliveriesTotal *prometheus.CounterVec
	deliveredBytes  *prometheus.CounterVec
	sweepReclaimed  *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total metadata cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total metadata cache misses",
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	uploadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_uploads_total",
		Help: "Total successfully ingested files",
	}, []string{"category"})

	deliveriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_deliveries_total",
		Help: "Total stream and download responses",
	}, []string{"category"})

	deliveredBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_delivered_bytes_total",
		Help: "Total bytes offered to clients",
	}, []string{"category"})

	sweepReclaimed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_sweep_reclaimed_total",
		Help: "Total items reclaimed by cleanup sweeps",
	}, []string{"pass"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, cacheHitRatio, uploadsTotal, deliveriesTotal, deliveredBytes, sweepReclaimed, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		cacheHitRatio:   cacheHitRatio,
		uploadsTotal:    uploadsTotal,
		deliveriesTotal: deliveriesTotal,
		deliveredBytes:  deliveredBytes,
		sweepReclaimed:  sweepReclaimed,
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

// ObserveHTTPRequest records per-request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a metadata cache lookup and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
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

// RecordUpload counts a successfully ingested file.
func (m *MetricsService) RecordUpload(category string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(category).Inc()
}

// RecordDelivery counts one stream or download response and the bytes it offered.
func (m *MetricsService) RecordDelivery(category string, bytes int64) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(category).Inc()
	m.deliveredBytes.WithLabelValues(category).Add(float64(bytes))
}

// RecordSweep counts items reclaimed by a cleanup run.
func (m *MetricsService) RecordSweep(orphaned, expired, tempFiles int) {
	if m == nil {
		return
	}
	m.sweepReclaimed.WithLabelValues("orphaned").Add(float64(orphaned))
	m.sweepReclaimed.WithLabelValues("expired").Add(float64(expired))
	m.sweepReclaimed.WithLabelValues("temp").Add(float64(tempFiles))
}
