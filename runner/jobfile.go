package runner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sadewadee/mapminer/internal/domain"
)

// listField accepts either a comma separated string or a YAML sequence
type listField string

func (l *listField) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = listField(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = listField(strings.Join(items, ", "))
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list", value.Line)
	}
}

// jobFile mirrors domain.JobConfiguration with list friendly fields.
// Pointers distinguish omitted fields from zero values.
type jobFile struct {
	SearchTerm     *string    `yaml:"search_term"`
	Cities         *listField `yaml:"cities"`
	EntriesPerCity *int       `yaml:"entries_per_city"`
	RequiredWords  *listField `yaml:"required_words"`
	DelayMin       *int       `yaml:"delay_min"`
	DelayMax       *int       `yaml:"delay_max"`
	ScrollDelayMin *int       `yaml:"scroll_delay_min"`
	ScrollDelayMax *int       `yaml:"scroll_delay_max"`
	ClickDelayMin  *int       `yaml:"click_delay_min"`
	ClickDelayMax  *int       `yaml:"click_delay_max"`
	Browser        *string    `yaml:"browser"`
	MaxWorkers     *int       `yaml:"max_workers"`
	RunStage2      *bool      `yaml:"run_stage_2"`
	RequireWebsite *bool      `yaml:"require_website"`
}

// LoadJobFile reads a YAML job configuration. Omitted fields keep the runner
// defaults. An empty path returns the defaults.
func LoadJobFile(path string) (domain.JobConfiguration, error) {
	if path == "" {
		return domain.DefaultJobConfiguration(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.JobConfiguration{}, fmt.Errorf("failed to read job file: %w", err)
	}

	cfg, err := ParseJob(data)
	if err != nil {
		return domain.JobConfiguration{}, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}

	return cfg, nil
}

// ParseJob decodes a YAML job document on top of the defaults.
// Unknown keys are rejected.
func ParseJob(data []byte) (domain.JobConfiguration, error) {
	cfg := domain.DefaultJobConfiguration()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f jobFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return cfg, err
	}

	setString(&cfg.SearchTerm, f.SearchTerm)
	setList(&cfg.Cities, f.Cities)
	setInt(&cfg.EntriesPerCity, f.EntriesPerCity)
	setList(&cfg.RequiredWords, f.RequiredWords)
	setInt(&cfg.DelayMin, f.DelayMin)
	setInt(&cfg.DelayMax, f.DelayMax)
	setInt(&cfg.ScrollDelayMin, f.ScrollDelayMin)
	setInt(&cfg.ScrollDelayMax, f.ScrollDelayMax)
	setInt(&cfg.ClickDelayMin, f.ClickDelayMin)
	setInt(&cfg.ClickDelayMax, f.ClickDelayMax)
	setString(&cfg.Browser, f.Browser)
	setInt(&cfg.MaxWorkers, f.MaxWorkers)

	if f.RunStage2 != nil {
		cfg.RunStage2 = *f.RunStage2
	}
	if f.RequireWebsite != nil {
		cfg.RequireWebsite = *f.RequireWebsite
	}

	cfg.Browser = strings.ToLower(cfg.Browser)

	return cfg, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setList(dst *string, v *listField) {
	if v != nil {
		*dst = string(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
