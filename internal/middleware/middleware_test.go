package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/kaisurf-be/internal/logging"
	"github.com/hongminglow/kaisurf-be/internal/metrics"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestCORSAllowList(t *testing.T) {
	h := CORS([]string{"https://app.kaisurf.io"}, okHandler)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://APP.kaisurf.io")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://APP.kaisurf.io", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Api-Key")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Auth-Username")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS([]string{"*"}, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/earn/kones", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestLoggingAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New("debug", "json", &buf)

	var seen string
	h := Logging(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), seen)
	assert.Contains(t, buf.String(), `"status":418`)

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	m := metrics.New()
	router := mux.NewRouter()
	router.Use(Metrics(m))
	router.Handle("/kones/balance", okHandler).Methods(http.MethodGet)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/kones/balance", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `kaisurf_http_requests_total{method="GET",path="/kones/balance",status="200"} 1`)
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2, logrus.New())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Handler(okHandler)

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/posts", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))

	now = now.Add(idleLimiterTTL + time.Minute)
	assert.Zero(t, rl.Sweep())
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0, nil)
	h := rl.Handler(okHandler)
	for i := 0; i < 100; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.Discard())
	h := rl.Handler(okHandler)

	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodGet, "/posts", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("X-Forwarded-For", spoofed)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, rl.Sweep())
}

func TestClientKey(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.TrustProxies(netip.MustParsePrefix("10.0.0.0/8"))

	cases := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct peer", "192.0.2.1:1234", "", "192.0.2.1"},
		{"untrusted peer with header", "192.0.2.1:1234", "203.0.113.9", "192.0.2.1"},
		{"trusted proxy", "10.0.0.5:80", "203.0.113.9", "203.0.113.9"},
		{"spoofed left hop", "10.0.0.5:80", "198.51.100.7, 203.0.113.9", "203.0.113.9"},
		{"proxy chain", "10.0.0.5:80", "203.0.113.9, 10.1.1.1", "203.0.113.9"},
		{"trusted proxy without header", "10.0.0.5:80", "", "10.0.0.5"},
		{"only proxies", "10.0.0.5:80", "10.2.2.2", "10.0.0.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			assert.Equal(t, tc.want, rl.clientKey(req))
		})
	}
}

func TestTimeoutSetsDeadline(t *testing.T) {
	var deadline time.Time
	var has bool
	h := Timeout(time.Second, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		deadline, has = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, has)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)

	plain := Timeout(0, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, has = r.Context().Deadline()
	}))
	plain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	assert.False(t, has)
}
