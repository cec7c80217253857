package domain

// Stats contains the per-run counters reported by the runner
type Stats struct {
	MapsScraped     int `json:"maps_scraped"`
	WebsitesScraped int `json:"websites_scraped"`
	EmailsFound     int `json:"emails_found"`
	OwnersFound     int `json:"owners_found"`
}

// Snapshot is the merged view of the run state
type Snapshot struct {
	Running     bool   `json:"running"`
	Stage       Stage  `json:"stage"`
	Progress    int    `json:"progress"`
	Total       int    `json:"total"`
	CurrentItem string `json:"current_item"`
	Stats       Stats  `json:"stats"`
}

// IdleSnapshot returns the snapshot of a client with no run in flight
func IdleSnapshot() Snapshot {
	return Snapshot{Stage: StageIdle}
}

// Percent returns progress as a fraction in [0,1]. Zero when total is unknown.
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}

	p := float64(s.Progress) / float64(s.Total)
	if p > 1 {
		p = 1
	}
	return p
}

// StatsPatch carries the subset of counters present in a progress event
type StatsPatch struct {
	MapsScraped     *int `json:"maps_scraped,omitempty"`
	WebsitesScraped *int `json:"websites_scraped,omitempty"`
	EmailsFound     *int `json:"emails_found,omitempty"`
	OwnersFound     *int `json:"owners_found,omitempty"`
}

// Patch is a partial status update. Nil fields are absent.
type Patch struct {
	Running     *bool       `json:"running,omitempty"`
	Stage       *string     `json:"stage,omitempty"`
	Progress    *int        `json:"progress,omitempty"`
	Total       *int        `json:"total,omitempty"`
	CurrentItem *string     `json:"current_item,omitempty"`
	Stats       *StatsPatch `json:"stats,omitempty"`
}

// StatusPayload is the wire shape of a full status event.
// Stage is kept raw so runner wire names and null can be mapped.
type StatusPayload struct {
	Running     bool    `json:"running"`
	Stage       *string `json:"stage"`
	Progress    int     `json:"progress"`
	Total       int     `json:"total"`
	CurrentItem string  `json:"current_item"`
	Stats       Stats   `json:"stats"`
	CSVPath     *string `json:"csv_path,omitempty"`
}

// RawStage returns the reported stage name, empty for null
func (p StatusPayload) RawStage() string {
	if p.Stage == nil {
		return ""
	}
	return *p.Stage
}

// Artifact is the downloadable result of a completed run
type Artifact struct {
	Path string `json:"csv_path"`
}

// Snapshot converts the payload into a Snapshot.
// ok is false when the stage name is not recognised; Stage is then idle.
func (p StatusPayload) Snapshot() (Snapshot, bool) {
	stage, ok := ParseStage(p.RawStage())

	return Snapshot{
		Running:     p.Running,
		Stage:       stage,
		Progress:    p.Progress,
		Total:       p.Total,
		CurrentItem: p.CurrentItem,
		Stats:       p.Stats,
	}, ok
}
