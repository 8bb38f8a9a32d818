package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)

	lvl, err = parseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	_, err = parseLevel("loud")
	assert.ErrorContains(t, err, "invalid log level")
}

func TestWithContextLogger_AddsCorrelationID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithCorrelationID(context.Background(), "corr-1")

	WithContextLogger(zap.New(core), ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "corr-1", logs.All()[0].ContextMap()["correlationId"])
}

func TestCorrelationIDFromContext_Missing(t *testing.T) {
	_, ok := CorrelationIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.IncDispatch(OutcomeSent, "")
	m.ObserveSweep(3, nil)
	m.IncStreamRecord("INSERT", "ok")
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.IncDispatch(OutcomeFailed, "Unregistered")
	m.ObserveSweep(4, nil)
	m.ObserveSweep(0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues(OutcomeFailed, "unregistered")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.sweepDeletedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepRunsTotal.WithLabelValues("error")))
}

func TestMetrics_HTTPMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/v1/notifications/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/notifications/abc", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/v1/notifications/{id}", "404")))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	assert.Contains(t, string(body), "transfer_notifier_http_requests_total")
}
