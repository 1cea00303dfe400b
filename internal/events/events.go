// Package events carries host events from the ledger and activity log to
// whoever listens: the event stream and loaded plugins.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Event types emitted by the host. Webhook events use their normalized tag.
const (
	TypeKonesCredited = "KONES_CREDITED"
	TypeRegistration  = "REGISTRATION"
	TypeLogin         = "LOGIN"
)

// DefaultPublishTimeout bounds one post-commit publish, so a stalled broker
// cannot hold a response whose write already succeeded.
const DefaultPublishTimeout = 2 * time.Second

// Detach returns a context that survives the caller's cancellation, carries
// its values, and expires after d.
func Detach(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

// Event is a committed fact about one identity.
type Event struct {
	Type       string          `json:"event_type"`
	AuthUID    string          `json:"user_auth_uid"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher delivers events. Publish is only called after the fact is durable.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error { return f(ctx, event) }

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout publishes to every member and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MustPayload marshals v for use as an event payload. v must be JSON-safe.
func MustPayload(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
