package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobConfigurationValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *JobConfiguration)
		field  string
	}{
		{name: "Defaults are valid", mutate: func(c *JobConfiguration) {}},
		{name: "Entries lower bound", mutate: func(c *JobConfiguration) { c.EntriesPerCity = 1 }},
		{name: "Entries upper bound", mutate: func(c *JobConfiguration) { c.EntriesPerCity = 100 }},
		{name: "Zero entries", mutate: func(c *JobConfiguration) { c.EntriesPerCity = 0 }, field: "entries_per_city"},
		{name: "Too many entries", mutate: func(c *JobConfiguration) { c.EntriesPerCity = 101 }, field: "entries_per_city"},
		{name: "Zero workers", mutate: func(c *JobConfiguration) { c.MaxWorkers = 0 }, field: "max_workers"},
		{name: "Too many workers", mutate: func(c *JobConfiguration) { c.MaxWorkers = 51 }, field: "max_workers"},
		{name: "Delay inverted", mutate: func(c *JobConfiguration) { c.DelayMin = 6 }, field: "delay_min"},
		{name: "Equal delays", mutate: func(c *JobConfiguration) { c.DelayMin, c.DelayMax = 4, 4 }},
		{name: "Scroll delay inverted", mutate: func(c *JobConfiguration) { c.ScrollDelayMax = 1 }, field: "scroll_delay_min"},
		{name: "Click delay inverted", mutate: func(c *JobConfiguration) { c.ClickDelayMin = 9 }, field: "click_delay_min"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultJobConfiguration()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestJobConfigurationLists(t *testing.T) {
	cfg := JobConfiguration{
		Cities:        "Berlin, Munich,, Hamburg ",
		RequiredWords: "",
	}

	assert.Equal(t, []string{"Berlin", "Munich", "Hamburg"}, cfg.CityList())
	assert.Empty(t, cfg.RequiredWordList())
}
