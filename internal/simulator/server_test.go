package simulator

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/transport"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	s, err := New(Config{
		OutputDir: t.TempDir(),
		Step:      time.Millisecond,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	return s
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestStartRequiresFields(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "invalid json", body: "{", message: "Invalid JSON body"},
		{name: "no cities", body: `{"search_term":"Autohaus","entries_per_city":5}`, message: "Missing required field: cities"},
		{name: "no entries", body: `{"search_term":"Autohaus","cities":"Berlin"}`, message: "Missing required field: entries_per_city"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			w := do(t, s.Handler(), http.MethodPost, "/api/start", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, errorOf(t, w))
		})
	}
}

func TestStopWhenIdle(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s.Handler(), http.MethodPost, "/api/stop", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Scraper is not running", errorOf(t, w))
}

func TestDownloadBounds(t *testing.T) {
	s := newTestServer(t)

	inside := filepath.Join(s.OutputDir(), "run.csv")
	require.NoError(t, os.WriteFile(inside, []byte("name\nAcme\n"), 0o644))

	outside := filepath.Join(t.TempDir(), "secret.csv")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{name: "no path", query: "", status: http.StatusBadRequest},
		{name: "outside output dir", query: outside, status: http.StatusForbidden},
		{name: "traversal", query: filepath.Join(s.OutputDir(), "..", "secret.csv"), status: http.StatusForbidden},
		{name: "missing", query: filepath.Join(s.OutputDir(), "gone.csv"), status: http.StatusNotFound},
		{name: "ok", query: inside, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s.Handler(), http.MethodGet, "/api/download?path="+url.QueryEscape(tt.query), "")
			assert.Equal(t, tt.status, w.Code)

			if tt.status == http.StatusOK {
				assert.Equal(t, "name\nAcme\n", w.Body.String())
				assert.Contains(t, w.Header().Get("Content-Disposition"), "run.csv")
			}
		})
	}
}

type recorder struct {
	mu     sync.Mutex
	events []string
	stages []string
}

func (r *recorder) Broadcast(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, name)

	if st, ok := payload.(domain.StatusPayload); ok {
		r.stages = append(r.stages, st.RawStage())
	}
}

func TestScriptedRun(t *testing.T) {
	tests := []struct {
		name   string
		stage2 bool
		stages []string
	}{
		{name: "two stages", stage2: true, stages: []string{wireMaps, wireEnrichment, wireCompleted, ""}},
		{name: "stage 1 only", stage2: false, stages: []string{wireMaps, wireCompleted, ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			job := newJob(t.TempDir(), time.Millisecond, rec, quietLogger())
			job.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

			cfg := domain.DefaultJobConfiguration()
			cfg.SearchTerm = "Car Dealer"
			cfg.Cities = "Berlin, Hamburg"
			cfg.EntriesPerCity = 3
			cfg.RunStage2 = tt.stage2

			require.NoError(t, job.Start(cfg))
			assert.ErrorIs(t, job.Start(cfg), ErrAlreadyRunning)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, job.Wait(ctx))

			st := job.Status()
			assert.False(t, st.Running)
			assert.Nil(t, st.Stage)
			require.NotNil(t, st.CSVPath)
			assert.Equal(t, "Car_Dealer_20250102_030405.csv", filepath.Base(*st.CSVPath))
			assert.Equal(t, 6, st.Stats.MapsScraped)

			rec.mu.Lock()
			assert.Equal(t, tt.stages, rec.stages)
			assert.Contains(t, rec.events, transport.EventScrapingComplete)
			rec.mu.Unlock()

			f, err := os.Open(*st.CSVPath)
			require.NoError(t, err)
			defer f.Close()

			rows, err := csv.NewReader(f).ReadAll()
			require.NoError(t, err)
			require.Len(t, rows, 7)
			assert.Equal(t, csvHeader, rows[0])

			if tt.stage2 {
				assert.Equal(t, 6, st.Stats.WebsitesScraped)
				assert.Equal(t, 3, st.Stats.EmailsFound)
				assert.NotEmpty(t, rows[1][5])
			} else {
				assert.Zero(t, st.Stats.WebsitesScraped)
			}
		})
	}
}

func TestStopInterruptsRun(t *testing.T) {
	rec := &recorder{}
	job := newJob(t.TempDir(), 50*time.Millisecond, rec, quietLogger())

	cfg := domain.DefaultJobConfiguration()
	cfg.SearchTerm = "Autohaus"
	cfg.Cities = "Berlin, Hamburg, Koeln"

	require.NoError(t, job.Start(cfg))
	require.NoError(t, job.Stop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, job.Wait(ctx))

	rec.mu.Lock()
	defer rec.mu.Unlock()

	assert.Contains(t, rec.stages, wireStopped)
	assert.NotContains(t, rec.events, transport.EventScrapingComplete)
	assert.Nil(t, job.Status().CSVPath)
}
