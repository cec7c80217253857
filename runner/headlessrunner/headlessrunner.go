// Package headlessrunner starts one run and follows it on the console
package headlessrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/sadewadee/mapminer/internal/console"
	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/session"
	"github.com/sadewadee/mapminer/runner"
)

var ErrRunErrored = errors.New("run ended with an error")

type HeadlessRunner struct {
	cfg     *runner.Config
	conn    *runner.Connection
	printer *console.Printer
	log     logrus.FieldLogger

	// Saved holds the artifact path once downloaded
	Saved string
}

// New creates the runner. Output goes to out, os.Stdout when nil.
func New(ctx context.Context, cfg *runner.Config, out io.Writer, log logrus.FieldLogger) (*HeadlessRunner, error) {
	conn, err := runner.Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	width := 100
	if out == nil {
		out = os.Stdout
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	return &HeadlessRunner{
		cfg:     cfg,
		conn:    conn,
		printer: console.New(out, width),
		log:     log.WithField("component", "headlessrunner"),
	}, nil
}

// Run starts the job and returns once the run reaches a terminal stage and
// its artifact, if any, is saved
func (h *HeadlessRunner) Run(ctx context.Context) error {
	connCtx, stopConn := context.WithCancel(ctx)
	defer stopConn()

	egroup, connCtx := errgroup.WithContext(connCtx)

	egroup.Go(func() error {
		return h.conn.Run(connCtx)
	})

	egroup.Go(func() error {
		defer stopConn()
		return h.follow(connCtx)
	})

	return egroup.Wait()
}

func (h *HeadlessRunner) Close(context.Context) error {
	return h.conn.Close()
}

type follower struct {
	sess     *session.Session
	printer  *console.Printer
	cursor   session.LogCursor
	progress string
}

func (h *HeadlessRunner) follow(ctx context.Context) error {
	sess := h.conn.Session
	f := &follower{sess: sess, printer: h.printer}

	changes, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	h.waitConnected(ctx, changes)

	h.printer.Job(h.cfg.Job)

	if err := sess.RequestStart(ctx, h.cfg.Job); err != nil {
		f.flush(ctx)
		return err
	}

	var grace <-chan time.Time

	for {
		view, err := sess.View(ctx)
		if err != nil {
			return nilIfDone(ctx, err)
		}

		f.flush(ctx)
		f.showProgress(view)

		if view.HasArtifact && h.Saved == "" {
			path, err := sess.DownloadTo(ctx, h.cfg.OutputDir, h.cfg.XLSX)
			f.flush(ctx)
			if err != nil {
				return err
			}

			h.Saved = path
			h.printer.Saved(path)
		}

		switch st := view.Snapshot.Stage; {
		case st == domain.StageErrored:
			return ErrRunErrored
		case st == domain.StageStopped:
			return nil
		case st == domain.StageCompleted && h.Saved != "":
			return nil
		case st == domain.StageCompleted && grace == nil:
			// The artifact may trail the completed status.
			grace = time.After(h.cfg.CommandTimeout)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-changes:
		case <-grace:
			h.log.Warn("run completed without an artifact")
			return nil
		}
	}
}

// waitConnected gives the event stream a moment so the first status is not
// missed. A slow stream does not block the start.
func (h *HeadlessRunner) waitConnected(ctx context.Context, changes <-chan struct{}) {
	timeout := time.After(h.cfg.CommandTimeout)

	for {
		view, err := h.conn.Session.View(ctx)
		if err != nil || view.Connected {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-timeout:
			h.log.Warn("event stream not connected, starting anyway")
			return
		case <-changes:
		}
	}
}

// flush prints log entries appended since the last call
func (f *follower) flush(ctx context.Context) {
	fresh, cur, err := f.sess.LogsSince(ctx, f.cursor)
	if err != nil {
		return
	}

	f.cursor = cur
	f.printer.Entries(fresh)
}

func (f *follower) showProgress(v session.View) {
	if v.Snapshot.Stage == domain.StageIdle {
		return
	}

	key := fmt.Sprintf("%s/%d/%d", v.Snapshot.Stage, v.Snapshot.Progress, v.Snapshot.Total)
	if key == f.progress {
		return
	}

	f.progress = key
	f.printer.Progress(v)
}

func nilIfDone(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, domain.ErrSessionClosed) {
		return nil
	}
	return err
}
