package transport

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// Backoff configures reconnect delays that double up to a cap
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff returns the reconnect policy shared by the event sources
func DefaultBackoff() Backoff {
	return Backoff{Initial: defaultInitialBackoff, Max: defaultMaxBackoff}
}

// Policy returns a fresh exponential schedule. It never gives up and has
// no jitter, so consecutive delays are Initial, 2*Initial, ... up to Max.
// Call Reset after a successful connection.
func (b Backoff) Policy() backoff.BackOff {
	initial := b.Initial
	if initial <= 0 {
		initial = defaultInitialBackoff
	}

	maxDelay := b.Max
	if maxDelay <= 0 {
		maxDelay = defaultMaxBackoff
	}

	p := backoff.NewExponentialBackOff()
	p.InitialInterval = initial
	p.MaxInterval = maxDelay
	p.Multiplier = 2
	p.RandomizationFactor = 0
	p.MaxElapsedTime = 0
	p.Reset()

	return p
}

// Sleep waits for d or until ctx ends. It returns false if ctx ended.
func Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
