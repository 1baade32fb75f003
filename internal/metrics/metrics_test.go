package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RecordOperation("validate", OutcomeSuccess)
	m.RecordOperation("validate", OutcomeSuccess)
	m.RecordOperation("validate", OutcomeRejected)
	m.IncValidationRetry()
	m.AddExpired(3)
	m.SetLowStock(2)
	m.RecordEvent("movement.validated", nil)
	m.RecordEvent("movement.validated", errors.New("broker down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StockOperations.WithLabelValues("validate", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StockOperations.WithLabelValues("validate", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationRetries))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ReservationsExpired))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LowStockProducts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("movement.validated", "failed")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodPost, "/api/operations/{id}/validate", http.StatusOK, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `stockmaster_http_requests_total{method="POST",route="/api/operations/{id}/validate",status="200"} 1`))
	assert.Contains(t, body, "stockmaster_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}
