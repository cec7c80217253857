package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStages = []Stage{
	StageIdle, StageCollecting, StageEnriching, StageCompleted, StageStopped, StageErrored,
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Stage
		allowed  bool
	}{
		{StageIdle, StageCollecting, true},
		{StageIdle, StageEnriching, true},
		{StageIdle, StageStopped, true},
		{StageIdle, StageErrored, true},
		{StageCollecting, StageEnriching, true},
		{StageCollecting, StageCompleted, true},
		{StageCollecting, StageIdle, false},
		{StageEnriching, StageCollecting, false},
		{StageEnriching, StageErrored, true},
		{StageCompleted, StageIdle, false},
		{StageCompleted, StageEnriching, false},
		{StageCompleted, StageErrored, true},
		{StageStopped, StageCollecting, false},
		{StageErrored, StageCompleted, false},
		{StageEnriching, StageEnriching, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestAbsorbingStages(t *testing.T) {
	for _, from := range []Stage{StageStopped, StageErrored} {
		for _, to := range allStages {
			if to == from {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestNoTransitionBackToIdle(t *testing.T) {
	for _, from := range allStages {
		if from == StageIdle {
			continue
		}
		assert.Error(t, ValidateTransition(from, StageIdle))
	}
}

func TestValidateTransitionUnknownStage(t *testing.T) {
	assert.Error(t, ValidateTransition(StageIdle, Stage("paused")))
	assert.NoError(t, ValidateTransition(StageIdle, StageCollecting))
}
