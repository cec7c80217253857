// Package watchrunner runs the interactive dashboard against a runner
package watchrunner

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/mapminer/internal/tui"
	"github.com/sadewadee/mapminer/runner"
)

type WatchRunner struct {
	cfg  *runner.Config
	conn *runner.Connection
	log  logrus.FieldLogger
}

func New(ctx context.Context, cfg *runner.Config, log logrus.FieldLogger) (runner.Runner, error) {
	conn, err := runner.Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	return &WatchRunner{
		cfg:  cfg,
		conn: conn,
		log:  log.WithField("component", "watchrunner"),
	}, nil
}

// Run blocks until the user quits or ctx ends
func (w *WatchRunner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.New(ctx, w.conn.Session, tui.Options{
		Job:       w.cfg.Job,
		OutputDir: w.cfg.OutputDir,
		XLSX:      w.cfg.XLSX,
		Logger:    w.log,
	})
	defer model.Close()

	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return w.conn.Run(ctx)
	})

	egroup.Go(func() error {
		// Quitting the dashboard ends the connection too.
		defer cancel()

		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil && ctx.Err() == nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("dashboard failed: %w", err)
		}

		return nil
	})

	return egroup.Wait()
}

func (w *WatchRunner) Close(context.Context) error {
	return w.conn.Close()
}
