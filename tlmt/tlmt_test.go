package tlmt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEvent(t *testing.T) {
	ev := NewEvent("session.start", map[string]any{"browser": "chrome"})

	assert.Equal(t, "session.start", ev.Name)
	assert.Equal(t, "chrome", ev.Properties["browser"])
	assert.Nil(t, NewEvent("session.stop", nil).Properties)
}

func TestDiscard(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	assert.NoError(t, Discard.Send(ctx, NewEvent("session.start", nil)))
	assert.NoError(t, Discard.Close())

	cancel()
	assert.ErrorIs(t, Discard.Send(ctx, NewEvent("session.stop", nil)), context.Canceled)
}
