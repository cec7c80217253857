// Package simrunner serves the development simulator
package simrunner

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/mapminer/internal/simulator"
	"github.com/sadewadee/mapminer/runner"
)

type SimRunner struct {
	sim *simulator.Server
	srv *http.Server
	log logrus.FieldLogger

	// ready is closed once the listener is bound
	ready chan struct{}
	addr  string
}

func New(cfg *runner.Config, log logrus.FieldLogger) (*SimRunner, error) {
	sim, err := simulator.New(simulator.Config{
		OutputDir: cfg.OutputDir,
		APIToken:  cfg.APIToken,
		Step:      cfg.SimStep,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           sim.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &SimRunner{
		sim:   sim,
		srv:   srv,
		log:   log.WithField("component", "simrunner"),
		ready: make(chan struct{}),
	}, nil
}

// Run serves until ctx ends
func (s *SimRunner) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}

	s.addr = ln.Addr().String()
	close(s.ready)

	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.sim.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Warn("simulated run did not stop cleanly")
		}

		return s.srv.Shutdown(shutdownCtx)
	})

	egroup.Go(func() error {
		s.log.WithFields(logrus.Fields{
			"addr":   s.addr,
			"output": s.sim.OutputDir(),
		}).Info("simulator listening")

		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return egroup.Wait()
}

// Addr blocks until the listener is bound and returns its address
func (s *SimRunner) Addr(ctx context.Context) (string, error) {
	select {
	case <-s.ready:
		return s.addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *SimRunner) Close(context.Context) error {
	return nil
}
