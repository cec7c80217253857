// Package transport connects the client to the job runner: an ordered event
// stream for status and a request channel for commands.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sadewadee/mapminer/internal/domain"
)

// Event names delivered by the runner
const (
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventStatus           = "status"
	EventProgress         = "progress"
	EventLog              = "log"
	EventScrapingComplete = "scraping_complete"
)

// Event is one message from the event stream.
// Err is set on disconnect events and holds a *domain.ChannelError.
type Event struct {
	Name    string
	Payload json.RawMessage
	Err     error
}

// Decode unmarshals the payload into v
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return fmt.Errorf("%w: %s has no payload", domain.ErrInvalidPayload, e.Name)
	}

	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidPayload, e.Name, err)
	}

	return nil
}

// Connected builds the event emitted when a stream comes up
func Connected() Event {
	return Event{Name: EventConnect}
}

// Disconnected builds the event emitted when a stream is lost
func Disconnected(source string, cause error) Event {
	return Event{
		Name: EventDisconnect,
		Err:  &domain.ChannelError{Source: source, Cause: cause},
	}
}

// Envelope is the relay format used by the bus sources.
// {"event": "progress", "data": {...}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope parses a relayed message into an Event
func DecodeEnvelope(body []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, fmt.Errorf("failed to decode envelope: %w", err)
	}

	if env.Event == "" {
		return Event{}, fmt.Errorf("%w: envelope without event name", domain.ErrInvalidPayload)
	}

	return Event{Name: env.Event, Payload: env.Data}, nil
}

// EncodeEnvelope builds a relay message for an event and payload
func EncodeEnvelope(name string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return json.Marshal(Envelope{Event: name, Data: data})
}

// Emit delivers ev on out unless ctx ends first
func Emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Handler reacts to one event
type Handler func(Event) error

// Router dispatches events to handlers registered by name.
// It is driven by a single goroutine.
type Router struct {
	handlers map[string]Handler
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// On registers h for events called name, replacing any earlier handler
func (r *Router) On(name string, h Handler) {
	r.handlers[name] = h
}

// Dispatch runs the handler registered for ev
func (r *Router) Dispatch(ev Event) error {
	h, ok := r.handlers[ev.Name]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownEvent, ev.Name)
	}

	return h(ev)
}
