// Package tlmt defines the opt-in usage telemetry sink
package tlmt

import "context"

// Event is a named usage event with optional properties
type Event struct {
	Name       string
	Properties map[string]any
}

// NewEvent creates an event. props may be nil.
func NewEvent(name string, props map[string]any) Event {
	return Event{Name: name, Properties: props}
}

// Telemetry sends usage events. Send must not block on the network.
type Telemetry interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// Discard accepts and drops every event. It is the sink when telemetry is
// off.
var Discard Telemetry = discard{}

type discard struct{}

func (discard) Send(ctx context.Context, _ Event) error {
	return ctx.Err()
}

func (discard) Close() error {
	return nil
}
