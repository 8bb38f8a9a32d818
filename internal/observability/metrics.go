package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "transfer_notifier"

// Dispatch outcomes.
const (
	OutcomeSent         = "sent"
	OutcomeFailed       = "failed"
	OutcomeSkippedType  = "skipped_type"
	OutcomeSkippedToken = "skipped_token"
)

// Metrics stores Prometheus collectors used by the handlers and transports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	dispatchTotal       *prometheus.CounterVec
	providerSendSeconds *prometheus.HistogramVec
	sweepRunsTotal      *prometheus.CounterVec
	sweepDeletedTotal   prometheus.Counter
	streamRecordsTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Dispatcher invocations by outcome.",
			},
			[]string{"outcome", "reason"},
		),
		providerSendSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_send_duration_seconds",
				Help:      "Push provider send duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		),
		sweepRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_runs_total",
				Help:      "Retention sweep runs by result.",
			},
			[]string{"result"},
		),
		sweepDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_deleted_total",
				Help:      "Notification records deleted by the retention sweep.",
			},
		),
		streamRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_records_total",
				Help:      "Change feed records consumed by event name and result.",
			},
			[]string{"event", "result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchTotal,
		m.providerSendSeconds,
		m.sweepRunsTotal,
		m.sweepDeletedTotal,
		m.streamRecordsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware records request counts and durations keyed by chi route pattern.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := routePath(r)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.recordHTTPRequest(r.Method, path, status, time.Since(start))
	})
}

func (m *Metrics) IncDispatch(outcome, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "none"
	}
	m.dispatchTotal.WithLabelValues(outcome, reasonLabel).Inc()
}

func (m *Metrics) ObserveProviderSend(provider string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.providerSendSeconds.WithLabelValues(provider).Observe(seconds)
}

func (m *Metrics) ObserveSweep(deleted int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sweepRunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.sweepRunsTotal.WithLabelValues("ok").Inc()
	m.sweepDeletedTotal.Add(float64(deleted))
}

func (m *Metrics) IncStreamRecord(event, result string) {
	if m == nil {
		return
	}
	m.streamRecordsTotal.WithLabelValues(strings.ToLower(event), result).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := strings.TrimSpace(rctx.RoutePattern()); p != "" {
			return p
		}
	}
	return "unmatched"
}
