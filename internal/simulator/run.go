package simulator

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/transport"
)

var (
	ErrAlreadyRunning = errors.New("scraper is already running")
	ErrNotRunning     = errors.New("scraper is not running")
)

// Runner wire stage names
const (
	wireMaps       = "maps_scraping"
	wireEnrichment = "website_enrichment"
	wireCompleted  = "completed"
	wireStopped    = "stopped"
	wireError      = "error"
)

var csvHeader = []string{"name", "city", "address", "phone", "website", "email", "owner"}

// emitter is the event side of the hub
type emitter interface {
	Broadcast(name string, payload any)
}

// Job runs the scripted two-stage run. Only one run is active at a time.
type Job struct {
	outputDir string
	step      time.Duration
	now       func() time.Time
	events    emitter
	log       logrus.FieldLogger

	mu     sync.Mutex
	status domain.StatusPayload
	cancel context.CancelFunc
	done   chan struct{}
}

func newJob(outputDir string, step time.Duration, events emitter, log logrus.FieldLogger) *Job {
	return &Job{
		outputDir: outputDir,
		step:      step,
		now:       time.Now,
		events:    events,
		log:       log,
	}
}

// Status returns a copy of the runner status
func (j *Job) Status() domain.StatusPayload {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.snapshotLocked()
}

func (j *Job) snapshotLocked() domain.StatusPayload {
	st := j.status
	if st.Stage != nil {
		stage := *st.Stage
		st.Stage = &stage
	}
	if st.CSVPath != nil {
		p := *st.CSVPath
		st.CSVPath = &p
	}
	return st
}

// Start launches a run in the background
func (j *Job) Start(cfg domain.JobConfiguration) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status.Running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())

	j.status.Running = true
	j.status.Stats = domain.Stats{}
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.run(ctx, cfg, j.done)

	return nil
}

// Stop cancels the active run. The run reports the stopped stage itself.
func (j *Job) Stop() error {
	j.mu.Lock()
	if !j.status.Running || j.cancel == nil {
		j.mu.Unlock()
		return ErrNotRunning
	}
	j.cancel()
	j.mu.Unlock()

	j.events.Broadcast(transport.EventLog, domain.LogPayload{Message: "Scraper stopped by user", Level: string(domain.LevelWarning)})

	return nil
}

// Wait blocks until the active run, if any, has finished
func (j *Job) Wait(ctx context.Context) error {
	j.mu.Lock()
	done := j.done
	j.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// update mutates the status and broadcasts the full status
func (j *Job) update(fn func(st *domain.StatusPayload)) {
	j.mu.Lock()
	fn(&j.status)
	st := j.snapshotLocked()
	j.mu.Unlock()

	j.events.Broadcast(transport.EventStatus, st)
}

// patch mutates the status and broadcasts only the changed fields
func (j *Job) patch(p domain.Patch) {
	j.mu.Lock()
	if p.Progress != nil {
		j.status.Progress = *p.Progress
	}
	if p.Total != nil {
		j.status.Total = *p.Total
	}
	if p.CurrentItem != nil {
		j.status.CurrentItem = *p.CurrentItem
	}
	if p.Stats != nil {
		applyStats(&j.status.Stats, *p.Stats)
	}
	j.mu.Unlock()

	j.events.Broadcast(transport.EventProgress, p)
}

func (j *Job) logf(level domain.Level, format string, args ...any) {
	j.events.Broadcast(transport.EventLog, domain.LogPayload{
		Message: fmt.Sprintf(format, args...),
		Level:   string(level),
	})
}

func (j *Job) run(ctx context.Context, cfg domain.JobConfiguration, done chan struct{}) {
	defer close(done)

	defer func() {
		j.update(func(st *domain.StatusPayload) {
			st.Running = false
			st.Stage = nil
		})
	}()

	j.logf(domain.LevelInfo, "Starting two-stage scraping process...")
	j.logf(domain.LevelInfo, "Search term: %s", cfg.SearchTerm)
	j.logf(domain.LevelInfo, "Cities: %s", strings.Join(cfg.CityList(), ", "))

	rows, err := j.collect(ctx, cfg)
	if err == nil && cfg.RunStage2 {
		err = j.enrich(ctx, cfg, rows)
	} else if err == nil {
		j.logf(domain.LevelInfo, "Stage 2 skipped (disabled in configuration)")
	}

	var path string
	if err == nil {
		path, err = j.write(cfg, rows)
	}

	switch {
	case errors.Is(err, context.Canceled):
		j.logf(domain.LevelWarning, "Scraping interrupted by user")
		j.update(func(st *domain.StatusPayload) { st.Stage = stagePtr(wireStopped) })
	case err != nil:
		j.log.WithError(err).Error("simulated run failed")
		j.logf(domain.LevelError, "Fatal error: %v", err)
		j.update(func(st *domain.StatusPayload) { st.Stage = stagePtr(wireError) })
	default:
		j.logf(domain.LevelSuccess, "Data saved to: %s", path)
		j.update(func(st *domain.StatusPayload) {
			st.Stage = stagePtr(wireCompleted)
			st.CSVPath = &path
		})
		j.logf(domain.LevelSuccess, "Scraping completed successfully!")
		j.events.Broadcast(transport.EventScrapingComplete, domain.Artifact{Path: path})
	}
}

func (j *Job) collect(ctx context.Context, cfg domain.JobConfiguration) ([][]string, error) {
	cities := cfg.CityList()

	j.logf(domain.LevelInfo, "Stage 1: Starting map scraping...")
	j.update(func(st *domain.StatusPayload) {
		st.Stage = stagePtr(wireMaps)
		st.Progress = 0
		st.Total = len(cities)
		st.CurrentItem = ""
	})

	var rows [][]string

	for idx, city := range cities {
		j.patch(domain.Patch{Progress: intPtr(idx + 1), CurrentItem: strPtr("Scraping " + city)})
		j.logf(domain.LevelInfo, "[%d/%d] Searching: %s %s", idx+1, len(cities), cfg.SearchTerm, city)

		if err := j.sleep(ctx); err != nil {
			return nil, err
		}

		for n := range cfg.EntriesPerCity {
			rows = append(rows, listing(cfg.SearchTerm, city, n))
		}

		j.logf(domain.LevelSuccess, "[%d/%d] %s: Scraped %d listings", idx+1, len(cities), city, cfg.EntriesPerCity)
		j.patch(domain.Patch{Stats: &domain.StatsPatch{MapsScraped: intPtr(len(rows))}})
	}

	j.logf(domain.LevelSuccess, "Stage 1 completed: %d total listings scraped", len(rows))

	return rows, nil
}

func (j *Job) enrich(ctx context.Context, cfg domain.JobConfiguration, rows [][]string) error {
	j.logf(domain.LevelInfo, "Stage 2: Starting website enrichment (%d parallel workers)...", cfg.MaxWorkers)
	j.update(func(st *domain.StatusPayload) {
		st.Stage = stagePtr(wireEnrichment)
		st.Progress = 0
		st.Total = len(rows)
		st.CurrentItem = ""
	})

	emails, owners := 0, 0

	for i, row := range rows {
		if err := j.sleep(ctx); err != nil {
			return err
		}

		// every second site lists an email, every third an owner
		if i%2 == 0 {
			row[5] = fmt.Sprintf("info@%s", strings.TrimPrefix(row[4], "https://"))
			emails++
		}
		if i%3 == 0 {
			row[6] = fmt.Sprintf("Owner %d", i+1)
			owners++
		}

		j.patch(domain.Patch{
			Progress:    intPtr(i + 1),
			CurrentItem: strPtr(row[4]),
			Stats: &domain.StatsPatch{
				WebsitesScraped: intPtr(i + 1),
				EmailsFound:     intPtr(emails),
				OwnersFound:     intPtr(owners),
			},
		})
	}

	j.logf(domain.LevelSuccess, "Stage 2 completed: %d websites processed", len(rows))

	return nil
}

func (j *Job) write(cfg domain.JobConfiguration, rows [][]string) (string, error) {
	if err := os.MkdirAll(j.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	term := strings.ReplaceAll(strings.TrimSpace(cfg.SearchTerm), " ", "_")
	if term == "" {
		term = "results"
	}

	path := filepath.Join(j.outputDir, fmt.Sprintf("%s_%s.csv", term, j.now().Format("20060102_150405")))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write csv rows: %w", err)
	}

	return path, nil
}

func (j *Job) sleep(ctx context.Context) error {
	if !transport.Sleep(ctx, j.step) {
		return ctx.Err()
	}
	return nil
}

func listing(term, city string, n int) []string {
	slug := strings.ToLower(strings.ReplaceAll(fmt.Sprintf("%s-%s-%d", term, city, n+1), " ", "-"))

	return []string{
		fmt.Sprintf("%s %s #%d", term, city, n+1),
		city,
		fmt.Sprintf("Hauptstrasse %d, %s", n+1, city),
		fmt.Sprintf("+49 30 %07d", n+1),
		"https://" + slug + ".test",
		"",
		"",
	}
}

func applyStats(s *domain.Stats, p domain.StatsPatch) {
	if p.MapsScraped != nil {
		s.MapsScraped = *p.MapsScraped
	}
	if p.WebsitesScraped != nil {
		s.WebsitesScraped = *p.WebsitesScraped
	}
	if p.EmailsFound != nil {
		s.EmailsFound = *p.EmailsFound
	}
	if p.OwnersFound != nil {
		s.OwnersFound = *p.OwnersFound
	}
}

func stagePtr(s string) *string { return &s }
func strPtr(s string) *string   { return &s }
func intPtr(v int) *int         { return &v }
