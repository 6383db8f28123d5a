package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/exam-results-api/internal/models"
)

const metricsNamespace = "exam_results"

// timing accumulates a count and total duration for snapshot averages.
type timing struct {
	count uint64
	nanos uint64
}

func (t *timing) add(d time.Duration) {
	atomic.AddUint64(&t.count, 1)
	atomic.AddUint64(&t.nanos, uint64(d.Nanoseconds()))
}

func (t *timing) load() (uint64, float64) {
	count := atomic.LoadUint64(&t.count)
	if count == 0 {
		return 0, 0
	}
	return count, float64(atomic.LoadUint64(&t.nanos)) / float64(count) / float64(time.Millisecond)
}

// MetricsService owns a private Prometheus registry for the API and keeps
// running totals for the /analytics/system snapshot. All methods are safe on a
// nil receiver.
type MetricsService struct {
	handler http.Handler

	httpDuration  *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	cacheLatency  prometheus.Histogram
	cacheWrites   prometheus.Histogram
	cacheHitRatio prometheus.Gauge
	queryDuration *prometheus.HistogramVec
	runDuration   prometheus.Histogram
	runs          *prometheus.CounterVec
	students      prometheus.Counter

	requests     timing
	queries      timing
	cacheHits    uint64
	cacheMisses  uint64
	runsFinished uint64
	runsFailed   uint64
	scored       uint64
}

// NewMetricsService registers the API collectors on a fresh registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &MetricsService{
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Analytics cache lookups by outcome.",
		}, []string{"outcome"}),
		cacheLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "read_seconds",
			Help:      "Analytics cache read latency.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		cacheWrites: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "write_seconds",
			Help:      "Analytics cache write latency.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		cacheHitRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "hit_ratio",
			Help:      "Share of analytics cache lookups served from cache.",
		}),
		queryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "load_duration_seconds",
			Help:      "Duration of analytics loads that missed the cache.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "processing",
			Name:      "run_duration_seconds",
			Help:      "Wall time of processing runs.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "processing",
			Name:      "runs_total",
			Help:      "Processing runs by terminal status.",
		}, []string{"status"}),
		students: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "processing",
			Name:      "students_scored_total",
			Help:      "Students scored by finished processing runs.",
		}),
	}
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Number of live goroutines.",
	}, func() float64 { return float64(runtime.NumGoroutine()) })
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
	m.requests.add(duration)
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	outcome := "miss"
	if hit {
		outcome = "hit"
		atomic.AddUint64(&m.cacheHits, 1)
	} else {
		atomic.AddUint64(&m.cacheMisses, 1)
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
	m.cacheHitRatio.Set(m.hitRatio())
}

// ObserveCacheWrite records a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrites.Observe(duration.Seconds())
}

// ObserveDBQuery records a database load behind an analytics read.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.queries.add(duration)
}

// ObserveProcessingRun records a run reaching a terminal status.
func (m *MetricsService) ObserveProcessingRun(status models.ProcessingStatus, students int, duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())
	m.runs.WithLabelValues(string(status)).Inc()
	if status != models.ProcessingStatusFinished {
		atomic.AddUint64(&m.runsFailed, 1)
		return
	}
	atomic.AddUint64(&m.runsFinished, 1)
	if students > 0 {
		m.students.Add(float64(students))
		atomic.AddUint64(&m.scored, uint64(students))
	}
}

func (m *MetricsService) hitRatio() float64 {
	hits := atomic.LoadUint64(&m.cacheHits)
	total := hits + atomic.LoadUint64(&m.cacheMisses)
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Snapshot returns the running totals served by /analytics/system.
func (m *MetricsService) Snapshot() models.AnalyticsSystemMetrics {
	if m == nil {
		return models.AnalyticsSystemMetrics{}
	}
	requests, avgRequestMs := m.requests.load()
	queries, avgQueryMs := m.queries.load()
	return models.AnalyticsSystemMetrics{
		CacheHitRatio:            m.hitRatio(),
		CacheHits:                atomic.LoadUint64(&m.cacheHits),
		CacheMisses:              atomic.LoadUint64(&m.cacheMisses),
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DBQueryCount:             queries,
		AverageDBQueryDurationMs: avgQueryMs,
		ProcessingRunsFinished:   atomic.LoadUint64(&m.runsFinished),
		ProcessingRunsFailed:     atomic.LoadUint64(&m.runsFailed),
		StudentsProcessed:        atomic.LoadUint64(&m.scored),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
