package domain

import "fmt"

var allowedTransitions = map[Stage]map[Stage]struct{}{
	// A run can end before its first stage report, and a client may
	// join mid-run, so idle reaches every other stage.
	StageIdle: {
		StageCollecting: {},
		StageEnriching:  {},
		StageCompleted:  {},
		StageStopped:    {},
		StageErrored:    {},
	},
	StageCollecting: {
		StageEnriching: {},
		StageCompleted: {},
		StageStopped:   {},
		StageErrored:   {},
	},
	StageEnriching: {
		StageCompleted: {},
		StageStopped:   {},
		StageErrored:   {},
	},
	StageCompleted: {
		StageStopped: {},
		StageErrored: {},
	},
	StageStopped: {},
	StageErrored: {},
}

// CanTransition reports whether the runner may move a run from one stage to another.
// Staying in the same stage is always allowed. Only Reset may return to idle.
func CanTransition(from, to Stage) bool {
	if from == to {
		return true
	}

	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}

	_, ok = next[to]
	return ok
}

// ValidateTransition returns an error describing a rejected stage change
func ValidateTransition(from, to Stage) error {
	if _, ok := allowedTransitions[to]; !ok {
		return fmt.Errorf("invalid stage: %q", to)
	}

	if !CanTransition(from, to) {
		return fmt.Errorf("invalid stage transition: %s -> %s", from, to)
	}

	return nil
}
