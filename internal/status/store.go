// Package status holds the client-side mirror of the runner's run state.
//
// A Store is not safe for concurrent use. It is owned by a single session
// loop that applies events one at a time.
package status

import (
	"github.com/sadewadee/mapminer/internal/domain"
)

// Store is the authoritative local copy of the run snapshot and artifact
type Store struct {
	snap      domain.Snapshot
	artifact  *domain.Artifact
	connected bool
	rejected  int
}

// New returns a store holding the idle snapshot
func New() *Store {
	return &Store{snap: domain.IdleSnapshot()}
}

// Current returns a copy of the snapshot
func (s *Store) Current() domain.Snapshot {
	return s.snap
}

// ApplyFullStatus replaces the snapshot with one pushed by the runner.
// Counters are clamped so they never decrease within a run and the stage
// only changes along an allowed transition. It returns false when the
// reported stage was not applied.
func (s *Store) ApplyFullStatus(next domain.Snapshot) bool {
	prev := s.snap

	var applied bool
	next.Stage, applied = s.guardStage(prev.Stage, next.Stage)
	next.Stats = maxStats(prev.Stats, next.Stats)
	next.Total = nonNegative(next.Total)
	next.Progress = clampProgress(next.Progress, next.Total)

	s.snap = next

	return applied
}

// ApplyPatch merges the fields present in p. Absent fields keep their value.
// It returns false when the patch named a stage that was not applied.
func (s *Store) ApplyPatch(p domain.Patch) bool {
	applied := true

	if p.Running != nil {
		s.snap.Running = *p.Running
	}

	if p.Stage != nil {
		stage, ok := domain.ParseStage(*p.Stage)
		if ok {
			s.snap.Stage, applied = s.guardStage(s.snap.Stage, stage)
		} else {
			applied = false
		}
	}

	if p.Total != nil {
		s.snap.Total = nonNegative(*p.Total)
	}

	if p.Progress != nil {
		s.snap.Progress = nonNegative(*p.Progress)
	}

	if p.CurrentItem != nil {
		s.snap.CurrentItem = *p.CurrentItem
	}

	if p.Stats != nil {
		s.snap.Stats = mergeStats(s.snap.Stats, *p.Stats)
	}

	s.snap.Progress = clampProgress(s.snap.Progress, s.snap.Total)

	return applied
}

// Reset restores the idle snapshot and drops the artifact.
// The connection flag is transport state and survives a reset.
func (s *Store) Reset() {
	s.snap = domain.IdleSnapshot()
	s.artifact = nil
	s.rejected = 0
}

// SetArtifact records the artifact announced by scraping_complete
func (s *Store) SetArtifact(path string) {
	s.artifact = &domain.Artifact{Path: path}
}

// Artifact returns the current artifact, if any
func (s *Store) Artifact() (domain.Artifact, bool) {
	if s.artifact == nil {
		return domain.Artifact{}, false
	}
	return *s.artifact, true
}

// SetConnected updates the event stream indicator
func (s *Store) SetConnected(connected bool) {
	s.connected = connected
}

// Connected reports whether the event stream is up
func (s *Store) Connected() bool {
	return s.connected
}

// RejectedTransitions returns how many stage changes were ignored since the last reset
func (s *Store) RejectedTransitions() int {
	return s.rejected
}

func (s *Store) guardStage(from, to domain.Stage) (domain.Stage, bool) {
	if domain.CanTransition(from, to) {
		return to, true
	}

	s.rejected++
	return from, false
}

func mergeStats(cur domain.Stats, p domain.StatsPatch) domain.Stats {
	if p.MapsScraped != nil {
		cur.MapsScraped = max(cur.MapsScraped, *p.MapsScraped)
	}
	if p.WebsitesScraped != nil {
		cur.WebsitesScraped = max(cur.WebsitesScraped, *p.WebsitesScraped)
	}
	if p.EmailsFound != nil {
		cur.EmailsFound = max(cur.EmailsFound, *p.EmailsFound)
	}
	if p.OwnersFound != nil {
		cur.OwnersFound = max(cur.OwnersFound, *p.OwnersFound)
	}
	return cur
}

func maxStats(a, b domain.Stats) domain.Stats {
	return domain.Stats{
		MapsScraped:     max(a.MapsScraped, b.MapsScraped),
		WebsitesScraped: max(a.WebsitesScraped, b.WebsitesScraped),
		EmailsFound:     max(a.EmailsFound, b.EmailsFound),
		OwnersFound:     max(a.OwnersFound, b.OwnersFound),
	}
}

func clampProgress(progress, total int) int {
	progress = nonNegative(progress)
	if total > 0 && progress > total {
		return total
	}
	return progress
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
