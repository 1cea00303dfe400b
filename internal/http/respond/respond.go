package respond

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/kaisurf-be/internal/apperr"
)

// Envelope is the error body shared by every endpoint.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes payload as the response body.
func JSON(w http.ResponseWriter, status int, payload any) {
	write(w, status, payload)
}

// Error writes an error response with the shared envelope structure.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Code: status, Message: message})
}

// Problem renders a classified error. Server-side failures are logged with
// their cause; the client only sees the public message.
func Problem(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()
	if status >= http.StatusInternalServerError && log != nil {
		log.WithError(err).WithField("kind", kind.String()).Error("request failed")
	}
	if apperr.Retryable(err) {
		w.Header().Set("Retry-After", "1")
	}
	Error(w, status, apperr.PublicMessage(err))
}

func write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Warn("respond: encode payload failed")
	}
}
