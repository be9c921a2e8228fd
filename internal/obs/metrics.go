// Package obs exposes Prometheus metrics for the HTTP surface and the
// late-day and attendance flows.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	buildInfo      *prometheus.GaugeVec
	claimsTotal    *prometheus.CounterVec
	claimDays      prometheus.Counter
	bulkMarksTotal prometheus.Counter
	bulkMarkRows   *prometheus.CounterVec
	zoomUploads    *prometheus.CounterVec
}

// New registers every metric on a fresh registry. Go runtime and process
// collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Course portal build information.",
		}, []string{"version", "commit"}),
		claimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "late_day_claims_total",
			Help: "Late-day claim attempts by outcome.",
		}, []string{"outcome"}),
		claimDays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "late_days_claimed_total",
			Help: "Late days consumed by successful claims.",
		}),
		bulkMarksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_bulk_marks_total",
			Help: "Attendance bulk overwrites written.",
		}),
		bulkMarkRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_bulk_mark_rows_total",
			Help: "Attendance rows written by bulk overwrites.",
		}, []string{"status"}),
		zoomUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoom_log_uploads_total",
			Help: "Zoom log uploads forwarded to the processor by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.buildInfo, m.claimsTotal, m.claimDays,
		m.bulkMarksTotal, m.bulkMarkRows, m.zoomUploads,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetBuildInfo(version, commit string) {
	m.buildInfo.WithLabelValues(version, commit).Set(1)
}

// Outcome labels shared by the domain counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// The recorders below accept a nil receiver so services can run without
// metrics in tests.

func (m *Metrics) ClaimRecorded(outcome string, days int) {
	if m == nil {
		return
	}
	m.claimsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess && days > 0 {
		m.claimDays.Add(float64(days))
	}
}

func (m *Metrics) BulkMarkRecorded(present, absent int) {
	if m == nil {
		return
	}
	m.bulkMarksTotal.Inc()
	m.bulkMarkRows.WithLabelValues("present").Add(float64(present))
	m.bulkMarkRows.WithLabelValues("absent").Add(float64(absent))
}

func (m *Metrics) ZoomUploadRecorded(outcome string) {
	if m == nil {
		return
	}
	m.zoomUploads.WithLabelValues(outcome).Inc()
}

// Instrument measures request count, latency and in-flight requests. The path
// label is the chi route pattern so ids do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := routePattern(r)
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Flush keeps server-sent events working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
