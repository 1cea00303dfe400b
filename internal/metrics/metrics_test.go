package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditCounters(t *testing.T) {
	m := New()
	m.CreditApplied(50)
	m.CreditApplied(25)
	m.CreditRejected("validation")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.credits.WithLabelValues("applied")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.credits.WithLabelValues("validation")))
	assert.Equal(t, float64(75), testutil.ToFloat64(m.creditedAmount))
}

func TestNilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncInFlight()
		m.DecInFlight()
		m.ObserveHTTP("GET", "/health", "200", time.Millisecond)
		m.CreditApplied(1)
		m.CreditRejected("x")
		m.AuthFailed("expired")
		m.AuditRecorded("webhook")
		m.PluginLoaded(false)
		m.EventPublished(errors.New("down"))
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodPost, "/earn/kones", "200", 20*time.Millisecond)
	m.AuthFailed("expired")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `kaisurf_http_requests_total{method="POST",path="/earn/kones",status="200"} 1`)
	assert.Contains(t, body, `kaisurf_auth_failures_total{reason="expired"} 1`)
}
