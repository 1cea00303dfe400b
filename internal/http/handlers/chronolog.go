package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/hongminglow/kaisurf-be/internal/chronolog"
	"github.com/hongminglow/kaisurf-be/internal/http/respond"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/models/dto"
)

// Chronolog is the activity log surface used by the webhook and history views.
type Chronolog interface {
	RecordWebhook(ctx context.Context, identity models.Identity, eventType string, payload json.RawMessage) (models.AuditLogEntry, error)
	History(ctx context.Context, identity models.Identity) ([]models.AuditLogEntry, error)
}

// ChronologHandler accepts webhook events and lists a user's activity.
type ChronologHandler struct {
	log       logrus.FieldLogger
	chronolog Chronolog
}

func NewChronologHandler(c Chronolog, log logrus.FieldLogger) *ChronologHandler {
	return &ChronologHandler{chronolog: c, log: log}
}

func (h *ChronologHandler) Register(r *mux.Router, gates Gates) {
	r.HandleFunc("/webhook/sync", gates.TrustedBearer.Then(h.handleWebhook)).Methods(http.MethodPost)
	r.HandleFunc("/user/chronolog", gates.Session.Then(h.handleHistory)).Methods(http.MethodGet)
}

func (h *ChronologHandler) handleWebhook(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	body, err := readJSON(w, r)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	fields := gjson.GetManyBytes(body, "event_type", "payload")
	eventType, payload := fields[0], fields[1]
	if eventType.Type != gjson.String || !payload.Exists() {
		fail(w, r, h.log, chronolog.ErrMissingFields)
		return
	}

	entry, err := h.chronolog.RecordWebhook(r.Context(), identity, eventType.String(), json.RawMessage(payload.Raw))
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.WebhookResponse{Message: "Webhook event processed.", EventType: entry.EventType})
}

func (h *ChronologHandler) handleHistory(w http.ResponseWriter, r *http.Request, identity models.Identity) {
	entries, err := h.chronolog.History(r.Context(), identity)
	if err != nil {
		fail(w, r, h.log, err)
		return
	}
	items := make([]dto.ChronologItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.ChronologItem{Timestamp: e.CreatedAt, EventType: e.EventType, Payload: e.Payload})
	}
	respond.JSON(w, http.StatusOK, items)
}
