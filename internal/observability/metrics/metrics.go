package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics instruments inbound HTTP traffic.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

// NewHTTPMetrics registers HTTP instruments on the default registerer.
func NewHTTPMetrics() *HTTPMetrics {
	return newHTTPMetrics(prometheus.DefaultRegisterer)
}

func newHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "benang_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "benang_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "benang_http_requests_inflight",
			Help: "In-flight HTTP requests.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.inflight)
	return m
}

// GinMiddleware records request counts and latencies.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.inflight.Inc()
		c.Next()
		m.inflight.Dec()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// LedgerMetrics instruments the investor ledger core.
type LedgerMetrics struct {
	entries       *prometheus.CounterVec
	distributions prometheus.Counter
	balanceDrift  prometheus.Counter
	jobRuns       *prometheus.CounterVec
	jobErrors     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
}

// NewLedgerMetrics registers ledger instruments on the default registerer.
func NewLedgerMetrics() *LedgerMetrics {
	return newLedgerMetrics(prometheus.DefaultRegisterer)
}

func newLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "benang_ledger_entries_total",
			Help: "Ledger entries appended, by entry type.",
		}, []string{"type"}),
		distributions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "benang_profit_distributions_total",
			Help: "Completed profit distribution runs.",
		}),
		balanceDrift: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "benang_balance_drift_total",
			Help: "Investors whose cached balances diverged from ledger replay.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "benang_scheduler_job_runs_total",
			Help: "Scheduler job runs by job name.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "benang_scheduler_job_errors_total",
			Help: "Scheduler job failures by job name.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "benang_scheduler_job_duration_seconds",
			Help:    "Scheduler job durations by job name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	reg.MustRegister(m.entries, m.distributions, m.balanceDrift, m.jobRuns, m.jobErrors, m.jobDuration)
	return m
}

func (m *LedgerMetrics) RecordEntry(entryType string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(strings.TrimSpace(entryType)).Inc()
}

func (m *LedgerMetrics) RecordDistribution() {
	if m == nil {
		return
	}
	m.distributions.Inc()
}

func (m *LedgerMetrics) RecordBalanceDrift() {
	if m == nil {
		return
	}
	m.balanceDrift.Inc()
}

func (m *LedgerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *LedgerMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *LedgerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}
