// Package stage derives the three-slot pipeline view from a status snapshot.
package stage

import "github.com/sadewadee/mapminer/internal/domain"

// SlotState is the visual sub-state of one pipeline slot
type SlotState string

const (
	SlotPending   SlotState = "pending"
	SlotActive    SlotState = "active"
	SlotCompleted SlotState = "completed"
)

// Slot indexes
const (
	SlotCollection = iota
	SlotEnrichment
	SlotArtifact
)

// Pipeline is the classified view of a run
type Pipeline struct {
	Stage domain.Stage
	Slots [3]SlotState
}

// Collection returns the state of the listing collection slot
func (p Pipeline) Collection() SlotState { return p.Slots[SlotCollection] }

// Enrichment returns the state of the website enrichment slot
func (p Pipeline) Enrichment() SlotState { return p.Slots[SlotEnrichment] }

// Artifact returns the state of the download slot
func (p Pipeline) Artifact() SlotState { return p.Slots[SlotArtifact] }

// Classify maps a snapshot and artifact presence to the pipeline view.
// Slots 1 and 2 follow the stage field. Slot 3 follows the artifact only,
// it has no completed state.
func Classify(snap domain.Snapshot, hasArtifact bool) Pipeline {
	return Pipeline{
		Stage: snap.Stage,
		Slots: [3]SlotState{
			collection(snap.Stage, hasArtifact),
			enrichment(snap.Stage, hasArtifact),
			artifact(hasArtifact),
		},
	}
}

func collection(s domain.Stage, hasArtifact bool) SlotState {
	switch {
	case s == domain.StageCollecting:
		return SlotActive
	case s.IsInterrupted():
		return SlotPending
	case s == domain.StageEnriching, s == domain.StageCompleted, hasArtifact:
		return SlotCompleted
	default:
		return SlotPending
	}
}

func enrichment(s domain.Stage, hasArtifact bool) SlotState {
	switch {
	case s == domain.StageEnriching:
		return SlotActive
	case hasArtifact, s == domain.StageCompleted:
		return SlotCompleted
	default:
		return SlotPending
	}
}

func artifact(hasArtifact bool) SlotState {
	if hasArtifact {
		return SlotActive
	}
	return SlotPending
}
