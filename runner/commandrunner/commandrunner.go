// Package commandrunner holds the one-shot stop and status modes
package commandrunner

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/mapminer/internal/console"
	"github.com/sadewadee/mapminer/internal/session"
	"github.com/sadewadee/mapminer/runner"
)

// connectWait bounds how long status waits for the event stream
const connectWait = 3 * time.Second

type CommandRunner struct {
	mode    int
	cfg     *runner.Config
	conn    *runner.Connection
	printer *console.Printer
	log     logrus.FieldLogger
}

// New creates a stop or status runner. Output goes to out, os.Stdout when nil.
func New(ctx context.Context, cfg *runner.Config, out io.Writer, log logrus.FieldLogger) (*CommandRunner, error) {
	if cfg.RunMode != runner.RunModeStop && cfg.RunMode != runner.RunModeStatus {
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}

	conn, err := runner.Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if out == nil {
		out = os.Stdout
	}

	return &CommandRunner{
		mode:    cfg.RunMode,
		cfg:     cfg,
		conn:    conn,
		printer: console.New(out, 100),
		log:     log.WithField("component", "commandrunner"),
	}, nil
}

func (c *CommandRunner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return c.conn.Run(ctx)
	})

	egroup.Go(func() error {
		defer cancel()

		if c.mode == runner.RunModeStop {
			return c.stop(ctx)
		}
		return c.status(ctx)
	})

	return egroup.Wait()
}

func (c *CommandRunner) Close(context.Context) error {
	return c.conn.Close()
}

func (c *CommandRunner) stop(ctx context.Context) error {
	sess := c.conn.Session

	err := sess.RequestStop(ctx)
	c.printLogs(ctx, sess)

	return err
}

func (c *CommandRunner) status(ctx context.Context) error {
	sess := c.conn.Session

	c.waitConnected(ctx, sess)

	if err := sess.Refresh(ctx); err != nil {
		c.printLogs(ctx, sess)
		return err
	}

	view, err := sess.View(ctx)
	if err != nil {
		return err
	}

	c.printer.Status(view)

	return nil
}

func (c *CommandRunner) waitConnected(ctx context.Context, sess *session.Session) {
	changes, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	timeout := time.After(connectWait)

	for {
		if v, err := sess.View(ctx); err != nil || v.Connected {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-timeout:
			return
		case <-changes:
		}
	}
}

func (c *CommandRunner) printLogs(ctx context.Context, sess *session.Session) {
	logs, err := sess.Logs(ctx)
	if err != nil {
		return
	}

	c.printer.Entries(slices.Collect(logs))
}
