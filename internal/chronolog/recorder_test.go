package chronolog

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/kaisurf-be/internal/events"
	"github.com/hongminglow/kaisurf-be/internal/logging"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/storage/memory"
)

func TestNormalizeEventType(t *testing.T) {
	cases := map[string]string{
		"purchase complete":    "WEBHOOK_PURCHASE_COMPLETE",
		"Purchase   Complete ": "WEBHOOK_PURCHASE_COMPLETE",
		"PURCHASE_COMPLETE":    "WEBHOOK_PURCHASE_COMPLETE",
		"session\tstarted":     "WEBHOOK_SESSION_STARTED",
		"wave":                 "WEBHOOK_WAVE",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeEventType(in), in)
	}
}

func newRecorder(t *testing.T, publisher events.Publisher) (*Recorder, *memory.Store, models.Identity) {
	t.Helper()
	store := memory.New()
	identity, _, err := store.CreateIdentity(context.Background(), "surfer-1")
	require.NoError(t, err)
	return NewRecorder(store, publisher, nil, logging.Discard()), store, identity
}

func TestRecordWebhook(t *testing.T) {
	var published []events.Event
	rec, store, identity := newRecorder(t, events.PublisherFunc(func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	}))

	entry, err := rec.RecordWebhook(context.Background(), identity, "purchase complete", json.RawMessage(`{"order_id":"A-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "WEBHOOK_PURCHASE_COMPLETE", entry.EventType)
	assert.JSONEq(t, `{"order_id":"A-1"}`, string(entry.Payload))

	balances, ledgerEntries, auditEntries := store.Counts()
	assert.Zero(t, balances)
	assert.Zero(t, ledgerEntries)
	assert.Equal(t, 1, auditEntries)

	require.Len(t, published, 1)
	assert.Equal(t, "WEBHOOK_PURCHASE_COMPLETE", published[0].Type)
}

func TestRecordWebhookDoesNotWaitOnStalledPublisher(t *testing.T) {
	rec, store, identity := newRecorder(t, events.PublisherFunc(func(ctx context.Context, _ events.Event) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	rec.publishTimeout = 20 * time.Millisecond

	start := time.Now()
	_, err := rec.RecordWebhook(context.Background(), identity, "sync", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	_, _, audit := store.Counts()
	assert.Equal(t, 1, audit)
}

func TestRecordWebhookValidation(t *testing.T) {
	cases := []struct {
		name      string
		eventType string
		payload   string
		want      error
	}{
		{"no type", "", `{"a":1}`, ErrMissingFields},
		{"blank type", "   ", `{"a":1}`, ErrMissingFields},
		{"no payload", "sync", ``, ErrMissingFields},
		{"empty object", "sync", `{}`, ErrInvalidPayload},
		{"empty array", "sync", `[]`, ErrInvalidPayload},
		{"scalar", "sync", `"hello"`, ErrInvalidPayload},
		{"broken json", "sync", `{"a":`, ErrInvalidPayload},
		{"long type", strings.Repeat("x", 130), `{"a":1}`, ErrEventTypeLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, store, identity := newRecorder(t, nil)
			_, err := rec.RecordWebhook(context.Background(), identity, tc.eventType, json.RawMessage(tc.payload))
			assert.ErrorIs(t, err, tc.want)
			_, _, audit := store.Counts()
			assert.Zero(t, audit)
		})
	}
}

func TestRecordInternalAndHistory(t *testing.T) {
	ctx := context.Background()
	rec, _, identity := newRecorder(t, nil)

	_, err := rec.Record(ctx, identity, events.TypeRegistration, map[string]string{"message": "User account created."})
	require.NoError(t, err)
	_, err = rec.RecordWebhook(ctx, identity, "wave ridden", json.RawMessage(`[1,2]`))
	require.NoError(t, err)

	history, err := rec.History(ctx, identity)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, events.TypeRegistration, history[0].EventType)
	assert.Equal(t, "WEBHOOK_WAVE_RIDDEN", history[1].EventType)
}

func TestRecordUnknownIdentity(t *testing.T) {
	rec := NewRecorder(memory.New(), nil, nil, nil)
	_, err := rec.RecordWebhook(context.Background(), models.Identity{AuthUID: "ghost"}, "x", json.RawMessage(`{"a":1}`))
	assert.ErrorIs(t, err, ErrUnknownUser)
}
