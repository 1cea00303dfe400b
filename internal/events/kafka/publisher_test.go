package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/kaisurf-be/internal/events"
)

func TestEncodeKeysByIdentity(t *testing.T) {
	at := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	msg, err := encode(events.Event{
		Type:       events.TypeKonesCredited,
		AuthUID:    "surfer-1",
		Payload:    json.RawMessage(`{"amount":50,"new_balance":75}`),
		OccurredAt: at,
	})
	require.NoError(t, err)

	assert.Equal(t, "surfer-1", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, events.TypeKonesCredited, string(msg.Headers[0].Value))

	var decoded events.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, events.TypeKonesCredited, decoded.Type)
	assert.JSONEq(t, `{"amount":50,"new_balance":75}`, string(decoded.Payload))
}

func TestEncodeRejectsInvalidPayload(t *testing.T) {
	_, err := encode(events.Event{Type: "X", Payload: json.RawMessage(`{broken`)})
	assert.Error(t, err)
}

func TestNewPublisherConfiguresWriter(t *testing.T) {
	p := NewPublisher([]string{"k1:9092", "k2:9092"}, "kaisurf.events")
	assert.Equal(t, "kaisurf.events", p.writer.Topic)
	require.NoError(t, p.Close())
}
