// Package chronolog records the per-user activity log: webhook events from
// trusted services and internal events such as registrations and logins.
package chronolog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/hongminglow/kaisurf-be/internal/apperr"
	"github.com/hongminglow/kaisurf-be/internal/events"
	"github.com/hongminglow/kaisurf-be/internal/logging"
	"github.com/hongminglow/kaisurf-be/internal/metrics"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/storage"
)

// WebhookPrefix namespaces tags of events reported through the webhook.
const WebhookPrefix = "WEBHOOK_"

const maxEventTypeLength = 128

var (
	ErrMissingFields  = apperr.New(apperr.KindValidation, "Request must include 'event_type' and 'payload'.")
	ErrInvalidPayload = apperr.New(apperr.KindValidation, "Payload must be a non-empty JSON object or array.")
	ErrEventTypeLong  = apperr.New(apperr.KindValidation, "event_type is too long.")
	ErrUnknownUser    = apperr.New(apperr.KindNotFound, "User not found in database.")
)

// NormalizeEventType turns a caller-supplied tag into WEBHOOK_<WORDS>, upper
// case and underscore-delimited, whatever the original casing or spacing.
func NormalizeEventType(raw string) string {
	words := strings.Fields(strings.ToUpper(raw))
	return WebhookPrefix + strings.Join(words, "_")
}

// Store is the persistence the recorder needs.
type Store interface {
	AppendAudit(ctx context.Context, entry models.AuditLogEntry) (models.AuditLogEntry, error)
	ListAudit(ctx context.Context, authUID string) ([]models.AuditLogEntry, error)
}

// Recorder appends activity log entries. It never touches balances.
type Recorder struct {
	store     Store
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	now       func() time.Time

	publishTimeout time.Duration
}

// NewRecorder returns a recorder writing to store and announcing every entry
// on publisher (nil means nobody listens).
func NewRecorder(store Store, publisher events.Publisher, m *metrics.Metrics, log logrus.FieldLogger) *Recorder {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{
		store:          store,
		publisher:      publisher,
		metrics:        m,
		log:            log,
		now:            time.Now,
		publishTimeout: events.DefaultPublishTimeout,
	}
}

// RecordWebhook validates and stores an event reported by a trusted service.
func (r *Recorder) RecordWebhook(ctx context.Context, identity models.Identity, eventType string, payload json.RawMessage) (models.AuditLogEntry, error) {
	if strings.TrimSpace(eventType) == "" || len(payload) == 0 {
		return models.AuditLogEntry{}, ErrMissingFields
	}
	if !structured(payload) {
		return models.AuditLogEntry{}, ErrInvalidPayload
	}
	tag := NormalizeEventType(eventType)
	if len(tag) > maxEventTypeLength {
		return models.AuditLogEntry{}, ErrEventTypeLong
	}
	return r.append(ctx, identity, tag, payload, "webhook")
}

// Record stores an internal event under its literal tag.
func (r *Recorder) Record(ctx context.Context, identity models.Identity, eventType string, details any) (models.AuditLogEntry, error) {
	payload, err := json.Marshal(details)
	if err != nil {
		return models.AuditLogEntry{}, apperr.Wrap(apperr.KindInternal, "Failed to encode activity.", err)
	}
	return r.append(ctx, identity, eventType, payload, "internal")
}

// History returns identity's activity log, oldest first.
func (r *Recorder) History(ctx context.Context, identity models.Identity) ([]models.AuditLogEntry, error) {
	entries, err := r.store.ListAudit(ctx, identity.AuthUID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "Failed to load activity log.", err)
	}
	return entries, nil
}

func (r *Recorder) append(ctx context.Context, identity models.Identity, tag string, payload json.RawMessage, source string) (models.AuditLogEntry, error) {
	stored, err := r.store.AppendAudit(ctx, models.AuditLogEntry{
		AuthUID:   identity.AuthUID,
		EventType: tag,
		Payload:   payload,
		CreatedAt: r.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.AuditLogEntry{}, ErrUnknownUser
		}
		return models.AuditLogEntry{}, apperr.Wrap(apperr.KindUnavailable, "Failed to record activity.", err)
	}
	r.metrics.AuditRecorded(source)

	pubCtx, cancel := events.Detach(ctx, r.publishTimeout)
	defer cancel()
	pubErr := r.publisher.Publish(pubCtx, events.Event{
		Type:       stored.EventType,
		AuthUID:    stored.AuthUID,
		Payload:    stored.Payload,
		OccurredAt: stored.CreatedAt,
	})
	r.metrics.EventPublished(pubErr)
	if pubErr != nil {
		logging.FromContext(ctx, r.log).WithError(pubErr).WithField("event_type", stored.EventType).Warn("publish activity event failed")
	}
	return stored, nil
}

// structured reports whether payload is a JSON object or array with at least
// one member.
func structured(payload json.RawMessage) bool {
	if !gjson.ValidBytes(payload) {
		return false
	}
	res := gjson.ParseBytes(payload)
	switch {
	case res.IsObject():
		return len(res.Map()) > 0
	case res.IsArray():
		return len(res.Array()) > 0
	default:
		return false
	}
}
