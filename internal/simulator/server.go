// Package simulator is a local double of the job runner. It serves the same
// REST and Socket.IO surface and plays a scripted two-stage run without
// driving a browser.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/transport"
	"github.com/sadewadee/mapminer/internal/transport/socketio"
)

var requiredFields = []string{"search_term", "cities", "entries_per_city"}

// Config holds simulator settings
type Config struct {
	// OutputDir receives the generated CSV files and bounds downloads
	OutputDir string
	APIToken  string
	// Step is the pause between simulated units of work
	Step         time.Duration
	PingInterval time.Duration
	PingTimeout  time.Duration
	Logger       logrus.FieldLogger
}

// Server is the simulated runner
type Server struct {
	outputDir string
	token     string
	hub       *Hub
	job       *Job
	log       logrus.FieldLogger
}

// New creates a simulator. The output directory is created if missing.
func New(cfg Config) (*Server, error) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(os.TempDir(), "mapminer-sim")
	}

	dir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output dir: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	if cfg.Step <= 0 {
		cfg.Step = 300 * time.Millisecond
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 20 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "simulator")

	s := &Server{
		outputDir: dir,
		token:     cfg.APIToken,
		log:       log,
	}

	s.hub = newHub(cfg.PingInterval, cfg.PingTimeout, s.greeting, log)
	s.job = newJob(dir, cfg.Step, s.hub, log)

	return s, nil
}

// greeting is the status event every client receives on connect
func (s *Server) greeting() ([]byte, error) {
	return socketio.EncodeEvent(transport.EventStatus, s.job.Status())
}

// Handler returns the HTTP surface with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/download", s.handleDownload)
	mux.Handle("/socket.io/", s.hub)

	return Chain(mux,
		Recovery(s.log),
		Logger(s.log),
		CORS,
		Auth(s.token),
	)
}

// OutputDir returns the absolute directory runs are written to
func (s *Server) OutputDir() string {
	return s.outputDir
}

// Shutdown stops any active run and disconnects clients
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.job.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}

	err := s.job.Wait(ctx)

	s.hub.Close()

	return err
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		renderError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			renderError(w, http.StatusBadRequest, "Missing required field: "+f)
			return
		}
	}

	cfg := domain.DefaultJobConfiguration()

	raw, _ := json.Marshal(fields)
	if err := json.Unmarshal(raw, &cfg); err != nil {
		renderError(w, http.StatusBadRequest, "Invalid configuration: "+err.Error())
		return
	}

	if err := s.job.Start(cfg); err != nil {
		renderError(w, http.StatusBadRequest, "Scraper is already running")
		return
	}

	s.log.WithField("search_term", cfg.SearchTerm).Info("simulated run started")

	renderJSON(w, http.StatusOK, map[string]string{"message": "Scraper started successfully"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.job.Stop(); err != nil {
		renderError(w, http.StatusBadRequest, "Scraper is not running")
		return
	}

	renderJSON(w, http.StatusOK, map[string]string{"message": "Scraper stop requested"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, s.job.Status())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		renderError(w, http.StatusBadRequest, "No file path provided")
		return
	}

	if !s.contains(path) {
		renderError(w, http.StatusForbidden, "Invalid file path")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		renderError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		renderError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))

	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

// contains reports whether path resolves inside the output directory
func (s *Server) contains(path string) bool {
	rel, err := filepath.Rel(s.outputDir, filepath.Clean(path))
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
