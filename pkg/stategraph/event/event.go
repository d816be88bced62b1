package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is a notification published on a Bus.
// Events are immutable once created.
type Event interface {
	ID() string     // Unique event identifier
	Type() string   // Event type (e.g., "run.completed")
	Source() string // Event source (e.g., "stategraph")

	// CorrelationID groups related events; run events use the run ID.
	CorrelationID() string
	// CausationID is the ID of the event that directly caused this one.
	CausationID() string

	Timestamp() time.Time
	Data() any
}

// Metadata contains common event metadata fields.
type Metadata struct {
	EventID       string    `json:"id"`
	EventType     string    `json:"type"`
	EventSource   string    `json:"source"`
	CorrelationID string    `json:"correlation_id"`
	CausationID   string    `json:"causation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// BaseEvent provides a generic event implementation.
// T is the payload type for type-safe access.
type BaseEvent[T any] struct {
	Meta    Metadata `json:"metadata"`
	Payload T        `json:"payload"`
}

func (e *BaseEvent[T]) ID() string            { return e.Meta.EventID }
func (e *BaseEvent[T]) Type() string          { return e.Meta.EventType }
func (e *BaseEvent[T]) Source() string        { return e.Meta.EventSource }
func (e *BaseEvent[T]) CorrelationID() string { return e.Meta.CorrelationID }
func (e *BaseEvent[T]) CausationID() string   { return e.Meta.CausationID }
func (e *BaseEvent[T]) Timestamp() time.Time  { return e.Meta.Timestamp }
func (e *BaseEvent[T]) Data() any             { return e.Payload }

// TypedData returns the strongly-typed payload.
func (e *BaseEvent[T]) TypedData() T {
	return e.Payload
}

// EventOption configures event creation.
type EventOption func(*Metadata)

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) EventOption {
	return func(m *Metadata) { m.EventID = id }
}

// WithCorrelationID sets the correlation ID.
func WithCorrelationID(id string) EventOption {
	return func(m *Metadata) { m.CorrelationID = id }
}

// WithCausationID sets the ID of the causing event.
func WithCausationID(id string) EventOption {
	return func(m *Metadata) { m.CausationID = id }
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) EventOption {
	return func(m *Metadata) { m.Timestamp = t }
}

// New creates a new event with the given type, source, and payload.
// Without WithCorrelationID the event starts its own correlation chain.
func New[T any](eventType, source string, payload T, opts ...EventOption) *BaseEvent[T] {
	meta := Metadata{
		EventID:     uuid.New().String(),
		EventType:   eventType,
		EventSource: source,
		Timestamp:   time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&meta)
	}
	if meta.CorrelationID == "" {
		meta.CorrelationID = meta.EventID
	}
	return &BaseEvent[T]{Meta: meta, Payload: payload}
}

// NewFromParent creates an event caused by parent, inheriting its correlation ID.
func NewFromParent[T any](parent Event, eventType, source string, payload T, opts ...EventOption) *BaseEvent[T] {
	all := append([]EventOption{
		WithCorrelationID(parent.CorrelationID()),
		WithCausationID(parent.ID()),
	}, opts...)
	return New(eventType, source, payload, all...)
}

// Handler processes events delivered by a Bus.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// TypedHandler adapts a function that handles one payload type. Events with
// any other payload type are reported as an *EventError.
func TypedHandler[T any](fn func(ctx context.Context, payload T, meta Metadata) error) Handler {
	return HandlerFunc(func(ctx context.Context, evt Event) error {
		payload, ok := evt.Data().(T)
		if !ok {
			return &EventError{Event: evt, Message: "unexpected payload type"}
		}
		return fn(ctx, payload, Metadata{
			EventID:       evt.ID(),
			EventType:     evt.Type(),
			EventSource:   evt.Source(),
			CorrelationID: evt.CorrelationID(),
			CausationID:   evt.CausationID(),
			Timestamp:     evt.Timestamp(),
		})
	})
}
