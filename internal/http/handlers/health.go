package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hongminglow/kaisurf-be/internal/http/respond"
)

// HealthHandler returns uptime and basic status.
type HealthHandler struct {
	startedAt time.Time
	version   string
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, version string) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, version: version}
}

// Register wires the handler into the router.
func (h *HealthHandler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.handle).Methods(http.MethodGet)
}

func (h *HealthHandler) handle(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}
