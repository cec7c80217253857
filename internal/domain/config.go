package domain

import (
	"strings"
)

// Browser names accepted by the runner
const (
	BrowserSafari = "safari"
	BrowserChrome = "chrome"
	BrowserEdge   = "edge"
)

// Job configuration bounds
const (
	MinEntriesPerCity = 1
	MaxEntriesPerCity = 100
	MinWorkers        = 1
	MaxWorkers        = 50
)

// JobConfiguration is the run configuration submitted to the runner on start
type JobConfiguration struct {
	SearchTerm     string `json:"search_term" yaml:"search_term"`
	Cities         string `json:"cities" yaml:"cities"`
	EntriesPerCity int    `json:"entries_per_city" yaml:"entries_per_city"`
	RequiredWords  string `json:"required_words" yaml:"required_words"`
	DelayMin       int    `json:"delay_min" yaml:"delay_min"`
	DelayMax       int    `json:"delay_max" yaml:"delay_max"`
	ScrollDelayMin int    `json:"scroll_delay_min" yaml:"scroll_delay_min"`
	ScrollDelayMax int    `json:"scroll_delay_max" yaml:"scroll_delay_max"`
	ClickDelayMin  int    `json:"click_delay_min" yaml:"click_delay_min"`
	ClickDelayMax  int    `json:"click_delay_max" yaml:"click_delay_max"`
	Browser        string `json:"browser" yaml:"browser"`
	MaxWorkers     int    `json:"max_workers" yaml:"max_workers"`
	RunStage2      bool   `json:"run_stage_2" yaml:"run_stage_2"`
	RequireWebsite bool   `json:"require_website" yaml:"require_website"`
}

// DefaultJobConfiguration returns the configuration the runner assumes for omitted fields
func DefaultJobConfiguration() JobConfiguration {
	return JobConfiguration{
		EntriesPerCity: 20,
		DelayMin:       2,
		DelayMax:       5,
		ScrollDelayMin: 3,
		ScrollDelayMax: 7,
		ClickDelayMin:  3,
		ClickDelayMax:  7,
		Browser:        BrowserSafari,
		MaxWorkers:     10,
		RunStage2:      true,
		RequireWebsite: true,
	}
}

// Validate checks the bounds the runner relies on.
// It returns a *ValidationError naming the first offending field.
func (c JobConfiguration) Validate() error {
	switch {
	case c.EntriesPerCity < MinEntriesPerCity || c.EntriesPerCity > MaxEntriesPerCity:
		return &ValidationError{Field: "entries_per_city", Reason: "must be between 1 and 100"}
	case c.MaxWorkers < MinWorkers || c.MaxWorkers > MaxWorkers:
		return &ValidationError{Field: "max_workers", Reason: "must be between 1 and 50"}
	case c.DelayMin > c.DelayMax:
		return &ValidationError{Field: "delay_min", Reason: "must not exceed delay_max"}
	case c.ScrollDelayMin > c.ScrollDelayMax:
		return &ValidationError{Field: "scroll_delay_min", Reason: "must not exceed scroll_delay_max"}
	case c.ClickDelayMin > c.ClickDelayMax:
		return &ValidationError{Field: "click_delay_min", Reason: "must not exceed click_delay_max"}
	}

	return nil
}

// CityList splits the comma separated cities, dropping blanks
func (c JobConfiguration) CityList() []string {
	return splitList(c.Cities)
}

// RequiredWordList splits the comma separated required words, dropping blanks
func (c JobConfiguration) RequiredWordList() []string {
	return splitList(c.RequiredWords)
}

func splitList(s string) []string {
	var out []string

	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
