package domain

import "strings"

// Stage represents the coarse phase of a run as reported by the runner
type Stage string

const (
	StageIdle       Stage = "idle"
	StageCollecting Stage = "collecting"
	StageEnriching  Stage = "enriching"
	StageCompleted  Stage = "completed"
	StageStopped    Stage = "stopped"
	StageErrored    Stage = "errored"
)

// Runner wire names that differ from the canonical stage names
const (
	wireStageMaps       = "maps_scraping"
	wireStageEnrichment = "website_enrichment"
	wireStageError      = "error"
)

// ParseStage maps a canonical or runner wire stage name to a Stage.
// An empty name is idle. Unknown names report ok=false.
func ParseStage(s string) (Stage, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(StageIdle):
		return StageIdle, true
	case string(StageCollecting), wireStageMaps:
		return StageCollecting, true
	case string(StageEnriching), wireStageEnrichment:
		return StageEnriching, true
	case string(StageCompleted):
		return StageCompleted, true
	case string(StageStopped):
		return StageStopped, true
	case string(StageErrored), wireStageError:
		return StageErrored, true
	default:
		return StageIdle, false
	}
}

// IsTerminal returns true if the stage ends a run
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageStopped || s == StageErrored
}

// IsInterrupted returns true if the run was stopped or failed
func (s Stage) IsInterrupted() bool {
	return s == StageStopped || s == StageErrored
}

// IsActive returns true while the runner is working on one of the two stages
func (s Stage) IsActive() bool {
	return s == StageCollecting || s == StageEnriching
}

// Label returns a human label for the stage
func (s Stage) Label() string {
	switch s {
	case StageCollecting:
		return "Collecting listings"
	case StageEnriching:
		return "Enriching websites"
	case StageCompleted:
		return "Completed"
	case StageStopped:
		return "Stopped"
	case StageErrored:
		return "Error"
	default:
		return "Idle"
	}
}
