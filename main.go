package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/mapminer/runner"
	"github.com/sadewadee/mapminer/runner/commandrunner"
	"github.com/sadewadee/mapminer/runner/headlessrunner"
	"github.com/sadewadee/mapminer/runner/simrunner"
	"github.com/sadewadee/mapminer/runner/watchrunner"
	"github.com/sadewadee/mapminer/tlmt"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := runner.ParseConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if cfg.DisableTelemetry {
		runner.DisableTelemetry()
	}
	defer runner.Telemetry().Close()

	log, logFile, err := runner.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logFile.Close()

	if cfg.RunMode != runner.RunModeWatch {
		runner.Banner(os.Stderr)
	}

	log.WithFields(logrus.Fields{
		"mode":    cfg.RunMode,
		"runner":  cfg.RunnerURL,
		"events":  cfg.EventSource,
		"version": runner.Version,
	}).Debug("starting")

	runnerInstance, err := runnerFactory(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	_ = runner.Telemetry().Send(ctx, tlmt.NewEvent("mapminer_mode", map[string]any{
		"mode":    cfg.RunMode,
		"source":  cfg.EventSource,
		"version": runner.Version,
	}))

	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		if err := runnerInstance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err = egroup.Wait()

	_ = runnerInstance.Close(context.Background())

	if err != nil {
		log.WithError(err).Debug("run failed")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	return 0
}

func runnerFactory(ctx context.Context, cfg *runner.Config, log *logrus.Logger) (runner.Runner, error) {
	switch cfg.RunMode {
	case runner.RunModeWatch:
		return watchrunner.New(ctx, cfg, log)
	case runner.RunModeHeadless:
		return headlessrunner.New(ctx, cfg, nil, log)
	case runner.RunModeStop, runner.RunModeStatus:
		return commandrunner.New(ctx, cfg, nil, log)
	case runner.RunModeSimulate:
		return simrunner.New(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}
}
