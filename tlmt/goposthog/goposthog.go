// Package goposthog sends telemetry events to PostHog
package goposthog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"

	"github.com/sadewadee/mapminer/tlmt"
)

type service struct {
	client     posthog.Client
	distinctID string
}

// New creates a PostHog sink. Each process reports under a random id.
func New(apiKey, endpoint string) (tlmt.Telemetry, error) {
	client, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: endpoint})
	if err != nil {
		return nil, fmt.Errorf("failed to create posthog client: %w", err)
	}

	return &service{
		client:     client,
		distinctID: uuid.NewString(),
	}, nil
}

func (s *service) Send(ctx context.Context, ev tlmt.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	props := posthog.NewProperties()
	for k, v := range ev.Properties {
		props.Set(k, v)
	}

	return s.client.Enqueue(posthog.Capture{
		DistinctId: s.distinctID,
		Event:      ev.Name,
		Properties: props,
	})
}

func (s *service) Close() error {
	return s.client.Close()
}
