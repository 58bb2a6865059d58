package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/thesis-progress-api/internal/models"
)

// MetricsSnapshot is a lightweight summary of process counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	SweepRuns                uint64    `json:"sweep_runs"`
	NotificationFailures     uint64    `json:"notification_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// caching and the milestone workflow.
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

	submissions          *prometheus.CounterVec
	transitions          *prometheus.CounterVec
	gradesAssigned       *prometheus.CounterVec
	sweepRuns            *prometheus.CounterVec
	sweepStudents        *prometheus.CounterVec
	sweepDuration        prometheus.Histogram
	notificationFailures *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	sweepRunCount        uint64
	notificationFailed   uint64
}

// NewMetricsService registers the Prometheus collectors.
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

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
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

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "milestone_submissions_total",
		Help: "Accepted document submissions",
	}, []string{"document_type"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "milestone_transitions_total",
		Help: "Approval status transitions by target status",
	}, []string{"document_type", "status"})

	gradesAssigned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "milestone_grades_assigned_total",
		Help: "Grades written by letter and reason",
	}, []string{"letter", "reason"})

	sweepRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "milestone_sweep_runs_total",
		Help: "Missed deadline sweep runs by outcome",
	}, []string{"outcome"})

	sweepStudents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "milestone_sweep_students_total",
		Help: "Students visited by the sweep by result",
	}, []string{"result"})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "milestone_sweep_duration_seconds",
		Help:    "Duration of missed deadline sweeps",
		Buckets: prometheus.DefBuckets,
	})

	notificationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "milestone_notification_failures_total",
		Help: "Notifications that could not be stored or delivered",
	}, []string{"stage"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		submissions, transitions, gradesAssigned,
		sweepRuns, sweepStudents, sweepDuration,
		notificationFailures, goroutines,
	)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheWrite:           cacheWrite,
		cacheHitRatio:        cacheHitRatio,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		submissions:          submissions,
		transitions:          transitions,
		gradesAssigned:       gradesAssigned,
		sweepRuns:            sweepRuns,
		sweepStudents:        sweepStudents,
		sweepDuration:        sweepDuration,
		notificationFailures: notificationFailures,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
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

// RecordSubmission counts an accepted upload.
func (m *MetricsService) RecordSubmission(docType models.DocumentType) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(docType)).Inc()
}

// RecordTransition counts a reviewer driven status change.
func (m *MetricsService) RecordTransition(docType models.DocumentType, status models.ApprovalStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(docType), string(status)).Inc()
}

// RecordGrade counts a written grade.
func (m *MetricsService) RecordGrade(letter models.Letter, reason models.GradeReason) {
	if m == nil {
		return
	}
	m.gradesAssigned.WithLabelValues(string(letter), string(reason)).Inc()
}

// RecordSweep records the outcome of one sweep run.
func (m *MetricsService) RecordSweep(outcome string, result *models.SweepResult) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.sweepRunCount, 1)
	if result == nil {
		return
	}
	m.sweepStudents.WithLabelValues("graded").Add(float64(result.AffectedCount))
	m.sweepStudents.WithLabelValues("skipped").Add(float64(result.SkippedStudents))
	m.sweepStudents.WithLabelValues("failed").Add(float64(result.FailedStudents))
	if !result.FinishedAt.IsZero() {
		m.sweepDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	}
}

// RecordNotificationFailure counts a notification lost at the given stage.
func (m *MetricsService) RecordNotificationFailure(stage string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(stage).Inc()
	atomic.AddUint64(&m.notificationFailed, 1)
}

// Snapshot returns aggregated counters suitable for a JSON status endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if hits+misses > 0 {
		cacheRatio = float64(hits) / float64(hits+misses)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		SweepRuns:                atomic.LoadUint64(&m.sweepRunCount),
		NotificationFailures:     atomic.LoadUint64(&m.notificationFailed),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
