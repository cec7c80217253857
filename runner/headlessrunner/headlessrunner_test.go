package headlessrunner_test

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/simulator"
	"github.com/sadewadee/mapminer/internal/transport"
	"github.com/sadewadee/mapminer/runner"
	"github.com/sadewadee/mapminer/runner/headlessrunner"
)

func init() {
	color.NoColor = true
}

func newSimulator(t *testing.T, step time.Duration, log logrus.FieldLogger) *httptest.Server {
	t.Helper()

	sim, err := simulator.New(simulator.Config{
		OutputDir: t.TempDir(),
		Step:      step,
		Logger:    log,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(sim.Handler())
	t.Cleanup(func() {
		_ = sim.Shutdown(context.Background())
		srv.Close()
	})

	return srv
}

func config(url, out string, job domain.JobConfiguration) *runner.Config {
	return &runner.Config{
		RunMode:         runner.RunModeHeadless,
		RunnerURL:       url,
		EventSource:     runner.SourceSocketIO,
		CommandTimeout:  5 * time.Second,
		DownloadTimeout: 5 * time.Second,
		OutputDir:       out,
		Job:             job,
	}
}

func TestHeadlessRun(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	srv := newSimulator(t, time.Millisecond, log)

	job := domain.DefaultJobConfiguration()
	job.SearchTerm = "Autohaus"
	job.Cities = "Berlin"
	job.EntriesPerCity = 3

	tests := []struct {
		name string
		xlsx bool
		ext  string
	}{
		{name: "CSV", ext: ".csv"},
		{name: "XLSX", xlsx: true, ext: ".xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config(srv.URL, t.TempDir(), job)
			cfg.XLSX = tt.xlsx

			var out bytes.Buffer
			r, err := headlessrunner.New(context.Background(), cfg, &out, log)
			require.NoError(t, err)
			defer r.Close(context.Background())

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			require.NoError(t, r.Run(ctx))
			require.NoError(t, ctx.Err(), "run should finish on its own")

			require.NotEmpty(t, r.Saved)
			assert.Equal(t, cfg.OutputDir, filepath.Dir(r.Saved))
			assert.Equal(t, tt.ext, filepath.Ext(r.Saved))

			info, err := os.Stat(r.Saved)
			require.NoError(t, err)
			assert.Positive(t, info.Size())

			text := out.String()
			assert.Contains(t, text, "Search:      Autohaus")
			assert.Contains(t, text, "Scraper started successfully")
			assert.Contains(t, text, "CSV file downloaded successfully")
			assert.Contains(t, text, "saved")
		})
	}
}

func TestHeadlessStartRejected(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	srv := newSimulator(t, time.Minute, log)

	job := domain.DefaultJobConfiguration()
	job.SearchTerm = "Autohaus"
	job.Cities = "Berlin"

	// Another client holds the runner
	require.NoError(t, transport.NewClient(srv.URL).Start(context.Background(), job))

	var out bytes.Buffer
	r, err := headlessrunner.New(context.Background(), config(srv.URL, t.TempDir(), job), &out, log)
	require.NoError(t, err)
	defer r.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = r.Run(ctx)

	var runnerErr *domain.RunnerError
	require.ErrorAs(t, err, &runnerErr)
	assert.Equal(t, domain.RunnerErrorRejected, runnerErr.Kind)
	assert.Contains(t, out.String(), "Failed to start: Scraper is already running")
	assert.Empty(t, r.Saved)
}
