package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadewadee/mapminer/internal/domain"
)

func TestClientStart(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind domain.RunnerErrorKind
		detail   string
	}{
		{
			name:   "Accepted",
			status: http.StatusOK,
			body:   `{"message": "Scraper started successfully"}`,
		},
		{
			name:     "Rejected with runner reason",
			status:   http.StatusBadRequest,
			body:     `{"error": "Scraper is already running"}`,
			wantKind: domain.RunnerErrorRejected,
			detail:   "Scraper is already running",
		},
		{
			name:     "Rejected with plain body",
			status:   http.StatusInternalServerError,
			body:     "boom",
			wantKind: domain.RunnerErrorRejected,
			detail:   "boom",
		},
		{
			name:     "Rejected with empty body",
			status:   http.StatusServiceUnavailable,
			wantKind: domain.RunnerErrorRejected,
			detail:   "Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.JobConfiguration

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/start", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			cfg := domain.DefaultJobConfiguration()
			cfg.SearchTerm = "car dealerships"
			cfg.Cities = "Berlin,Munich"

			err := NewClient(srv.URL, WithAPIToken("tok")).Start(context.Background(), cfg)
			assert.Equal(t, cfg, got)

			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}

			var runnerErr *domain.RunnerError
			require.True(t, errors.As(err, &runnerErr))
			assert.Equal(t, tt.wantKind, runnerErr.Kind)
			assert.Equal(t, tt.detail, runnerErr.Detail)
			assert.Equal(t, tt.status, runnerErr.Status)
		})
	}
}

func TestClientStopTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	err := NewClient(srv.URL, WithCommandTimeout(50*time.Millisecond)).Stop(context.Background())

	var runnerErr *domain.RunnerError
	require.True(t, errors.As(err, &runnerErr))
	assert.Equal(t, domain.RunnerErrorTimeout, runnerErr.Kind)
}

func TestClientDisconnected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	err := NewClient(addr).Stop(context.Background())

	var runnerErr *domain.RunnerError
	require.True(t, errors.As(err, &runnerErr))
	assert.Equal(t, domain.RunnerErrorDisconnected, runnerErr.Kind)
	assert.True(t, runnerErr.IsRetryable())
}

func TestClientCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewClient(srv.URL).Stop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status", r.URL.Path)
		_, _ = io.WriteString(w, `{"running":true,"stage":"maps_scraping","progress":1,"total":4,"current_item":"Berlin","csv_path":null,"stats":{"maps_scraped":12,"websites_scraped":0,"emails_found":0,"owners_found":0}}`)
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL).Status(context.Background())
	require.NoError(t, err)

	snap, ok := status.Snapshot()
	assert.True(t, ok)
	assert.Equal(t, domain.StageCollecting, snap.Stage)
	assert.Equal(t, 12, snap.Stats.MapsScraped)
	assert.Equal(t, "Berlin", snap.CurrentItem)
}

func TestClientFetchArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/download", r.URL.Path)

		switch r.URL.Query().Get("path") {
		case "/out/a b.csv":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = io.WriteString(w, "name,city\nAcme,Berlin\n")
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error": "File not found"}`)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	body, err := c.FetchArtifact(context.Background(), "/out/a b.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "name,city\nAcme,Berlin\n", string(data))

	_, err = c.FetchArtifact(context.Background(), "/out/missing.csv")

	var runnerErr *domain.RunnerError
	require.True(t, errors.As(err, &runnerErr))
	assert.Equal(t, http.StatusNotFound, runnerErr.Status)
	assert.Equal(t, "File not found", runnerErr.Detail)
}
