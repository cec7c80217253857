package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sadewadee/mapminer/internal/artifact"
	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/export"
)

// Download is an artifact stream ready to be saved. The caller closes Body.
type Download struct {
	Filename string
	Path     string
	Body     io.ReadCloser
}

// RequestStart validates cfg, discards the previous run and asks the runner
// to begin. The stage is left for the runner to report.
func (s *Session) RequestStart(ctx context.Context, cfg domain.JobConfiguration) error {
	if err := cfg.Validate(); err != nil {
		s.log.WithError(err).Warn("job configuration rejected")
		s.record(ctx, fmt.Sprintf("%s %v", msgErrorOccurred, err), domain.LevelError)

		return err
	}

	err := s.do(ctx, func() {
		s.logs.Clear()
		s.store.Reset()
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"search_term": cfg.SearchTerm,
		"cities":      len(cfg.CityList()),
		"browser":     cfg.Browser,
	}).Info("requesting start")

	if err := s.tr.Start(ctx, cfg); err != nil {
		s.commandFailed(ctx, "start", msgFailedToStart, err)
		return err
	}

	s.track(ctx, "session.start", map[string]any{
		"browser":     cfg.Browser,
		"max_workers": cfg.MaxWorkers,
		"run_stage_2": cfg.RunStage2,
	})

	s.record(ctx, msgStarted, domain.LevelSuccess)

	return nil
}

// RequestStop asks the runner to stop cooperatively
func (s *Session) RequestStop(ctx context.Context) error {
	s.log.Info("requesting stop")

	if err := s.tr.Stop(ctx); err != nil {
		s.commandFailed(ctx, "stop", msgErrorOccurred, err)
		return err
	}

	s.track(ctx, "session.stop", nil)

	s.record(ctx, msgStopped, domain.LevelWarning)

	return nil
}

// RequestDownload opens the artifact of the last completed run
func (s *Session) RequestDownload(ctx context.Context) (*Download, error) {
	var (
		art domain.Artifact
		ok  bool
	)

	err := s.do(ctx, func() {
		art, ok = s.store.Artifact()
		if !ok {
			s.logs.Append(msgNoArtifact, domain.LevelError)
		}
	})
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, domain.ErrNoArtifact
	}

	body, err := s.tr.FetchArtifact(ctx, art.Path)
	if err != nil {
		s.commandFailed(ctx, "download", msgDownloadFailed, err)
		return nil, err
	}

	s.track(ctx, "session.download", nil)

	return &Download{
		Filename: artifact.DefaultFilename(art.Path),
		Path:     art.Path,
		Body:     body,
	}, nil
}

// DownloadTo saves the artifact into dir, converting it to XLSX when asked,
// and returns the written path
func (s *Session) DownloadTo(ctx context.Context, dir string, xlsx bool) (string, error) {
	d, err := s.RequestDownload(ctx)
	if err != nil {
		return "", err
	}
	defer d.Body.Close()

	path, err := export.Save(dir, d.Filename, d.Body, xlsx)
	if err != nil {
		s.log.WithError(err).WithField("dir", dir).Error("failed to save artifact")
		s.record(ctx, msgSaveFailed, domain.LevelError)
		return "", err
	}

	s.log.WithField("path", path).Info("artifact saved")
	s.record(ctx, msgDownloaded, domain.LevelSuccess)

	return path, nil
}

// Refresh fetches the full status on demand and applies it as if it had
// arrived on the event stream
func (s *Session) Refresh(ctx context.Context) error {
	payload, err := s.tr.Status(ctx)
	if err != nil {
		s.commandFailed(ctx, "status", msgErrorOccurred, err)
		return err
	}

	return s.do(ctx, func() {
		s.applyStatus(*payload)
	})
}

func (s *Session) commandFailed(ctx context.Context, command, prefix string, err error) {
	s.log.WithError(err).WithField("command", command).Error("command failed")

	msg := err.Error()

	var runnerErr *domain.RunnerError
	if errors.As(err, &runnerErr) {
		msg = runnerErr.UserMessage()
		if runnerErr.IsRetryable() {
			msg += retryHint
		}
	}

	s.record(ctx, prefix+" "+msg, domain.LevelError)
}

func (s *Session) record(ctx context.Context, message string, level domain.Level) {
	if err := s.AppendLog(ctx, message, level); err != nil {
		s.log.WithError(err).Debug("message not recorded in transcript")
	}
}
