package simulator_test

import (
	"context"
	"encoding/csv"
	"io"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/session"
	"github.com/sadewadee/mapminer/internal/simulator"
	"github.com/sadewadee/mapminer/internal/stage"
	"github.com/sadewadee/mapminer/internal/transport"
	"github.com/sadewadee/mapminer/internal/transport/socketio"
)

func TestSessionAgainstSimulator(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	sim, err := simulator.New(simulator.Config{
		OutputDir: t.TempDir(),
		APIToken:  "secret",
		Step:      time.Millisecond,
		Logger:    log,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()

	source, err := socketio.New(socketio.Config{
		RunnerURL: srv.URL,
		APIToken:  "secret",
		Backoff:   transport.Backoff{Initial: 10 * time.Millisecond, Max: 100 * time.Millisecond},
		Logger:    log,
	})
	require.NoError(t, err)

	client := transport.NewClient(srv.URL, transport.WithAPIToken("secret"))
	channel := transport.NewChannel(source, client, transport.WithLogger(log))
	sess := session.New(channel, session.WithLogger(log))

	ctx, cancel := context.WithCancel(context.Background())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return channel.Run(gctx) })
	g.Go(func() error { return sess.Run(gctx) })

	defer func() {
		cancel()
		_ = g.Wait()
		_ = sim.Shutdown(context.Background())
	}()

	current := func() session.View {
		v, err := sess.View(ctx)
		require.NoError(t, err)
		return v
	}

	require.Eventually(t, func() bool { return current().Connected }, 5*time.Second, 10*time.Millisecond)

	cfg := domain.DefaultJobConfiguration()
	cfg.SearchTerm = "Autohaus"
	cfg.Cities = "Berlin, Hamburg"
	cfg.EntriesPerCity = 2

	require.NoError(t, sess.RequestStart(ctx, cfg))

	require.Eventually(t, func() bool {
		v := current()
		return v.HasArtifact && v.Snapshot.Stage == domain.StageCompleted && !v.Snapshot.Running
	}, 10*time.Second, 10*time.Millisecond)

	v := current()
	assert.Equal(t, stage.SlotCompleted, v.Pipeline.Collection())
	assert.Equal(t, stage.SlotCompleted, v.Pipeline.Enrichment())
	assert.Equal(t, stage.SlotActive, v.Pipeline.Artifact())
	assert.Equal(t, 4, v.Snapshot.Stats.MapsScraped)
	assert.Equal(t, 4, v.Snapshot.Stats.WebsitesScraped)

	seq, err := sess.Logs(ctx)
	require.NoError(t, err)
	entries := slices.Collect(seq)
	assert.True(t, slices.ContainsFunc(entries, func(e domain.LogEntry) bool {
		return e.Message == "Scraper started successfully" && e.Level == domain.LevelSuccess
	}))

	dl, err := sess.RequestDownload(ctx)
	require.NoError(t, err)
	defer dl.Body.Close()

	assert.Contains(t, dl.Filename, "Autohaus_")

	rows, err := csv.NewReader(dl.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	err = sess.RequestStop(ctx)
	var rerr *domain.RunnerError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "Scraper is not running", rerr.Detail)
}
