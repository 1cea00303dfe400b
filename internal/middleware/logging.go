// Package middleware holds the HTTP wrappers applied around every route.
package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/kaisurf-be/internal/logging"
)

// RequestIDHeader carries the per-request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// Logging tags each request with an id, stores it on the context and logs one
// line per request once the handler returns.
func Logging(log logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = logging.NewRequestID()
		}
		r = r.WithContext(logging.WithRequestID(r.Context(), id))
		w.Header().Set(RequestIDHeader, id)

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		entry := logging.FromContext(r.Context(), log).WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote":      remoteHost(r),
		})
		switch {
		case wrapped.status >= http.StatusInternalServerError:
			entry.Error("request completed")
		case wrapped.status >= http.StatusBadRequest:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	})
}

// statusWriter captures the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
