package session

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/transport"
)

// Transcript wording shown to the user
const (
	msgConnected      = "Connected to backend server"
	msgDisconnected   = "Disconnected from backend server"
	msgStarted        = "Scraper started successfully"
	msgStopped        = "Scraper stopped"
	msgNoArtifact     = "No CSV file available to download"
	msgFailedToStart  = "Failed to start:"
	msgErrorOccurred  = "Error:"
	msgDownloadFailed = "Download error:"
	msgDownloaded     = "CSV file downloaded successfully"
	msgSaveFailed     = "Failed to download CSV file"

	retryHint = " (try again once the runner is reachable)"
)

func (s *Session) routes() *transport.Router {
	r := transport.NewRouter()

	r.On(transport.EventConnect, s.onConnect)
	r.On(transport.EventDisconnect, s.onDisconnect)
	r.On(transport.EventStatus, s.onStatus)
	r.On(transport.EventProgress, s.onProgress)
	r.On(transport.EventLog, s.onLog)
	r.On(transport.EventScrapingComplete, s.onScrapingComplete)

	return r
}

// handle runs on the loop goroutine
func (s *Session) handle(ev transport.Event) {
	err := s.router.Dispatch(ev)

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnknownEvent):
		s.log.WithField("event", ev.Name).Debug("ignoring unknown event")
	case errors.Is(err, domain.ErrInvalidPayload):
		s.log.WithError(err).WithField("event", ev.Name).Warn("malformed event")
		s.logs.Append(fmt.Sprintf("Ignored malformed %s event", ev.Name), domain.LevelWarning)
	default:
		s.log.WithError(err).WithField("event", ev.Name).Error("event handler failed")
	}
}

func (s *Session) onConnect(transport.Event) error {
	s.store.SetConnected(true)
	s.logs.Append(msgConnected, domain.LevelSuccess)

	s.log.Info("event stream connected")

	return nil
}

func (s *Session) onDisconnect(ev transport.Event) error {
	s.store.SetConnected(false)

	msg := msgDisconnected
	if ev.Err != nil {
		msg = fmt.Sprintf("%s: %v", msgDisconnected, ev.Err)
	}

	s.logs.Append(msg, domain.LevelWarning)

	s.log.WithError(ev.Err).Warn("event stream disconnected")

	return nil
}

func (s *Session) onStatus(ev transport.Event) error {
	var payload domain.StatusPayload
	if err := ev.Decode(&payload); err != nil {
		return err
	}

	s.applyStatus(payload)

	return nil
}

// applyStatus installs a full status. An unrecognised stage keeps the current one.
func (s *Session) applyStatus(payload domain.StatusPayload) {
	prev := s.store.Current().Stage

	snap, known := payload.Snapshot()
	if !known {
		s.log.WithField("stage", payload.RawStage()).Warn("unknown stage in status")
		snap.Stage = prev
	}

	if !s.store.ApplyFullStatus(snap) {
		s.log.WithError(domain.ValidateTransition(prev, snap.Stage)).WithFields(logrus.Fields{
			"from": prev,
			"to":   snap.Stage,
		}).Debug("stage transition rejected")
	}

	if payload.CSVPath != nil && *payload.CSVPath != "" {
		s.store.SetArtifact(*payload.CSVPath)
	}
}

func (s *Session) onProgress(ev transport.Event) error {
	var patch domain.Patch
	if err := ev.Decode(&patch); err != nil {
		return err
	}

	if !s.store.ApplyPatch(patch) && patch.Stage != nil {
		s.log.WithField("stage", *patch.Stage).Debug("stage in progress event not applied")
	}

	return nil
}

func (s *Session) onLog(ev transport.Event) error {
	var payload domain.LogPayload
	if err := ev.Decode(&payload); err != nil {
		return err
	}

	s.logs.Append(payload.Message, domain.ParseLevel(payload.Level))

	return nil
}

func (s *Session) onScrapingComplete(ev transport.Event) error {
	var art domain.Artifact
	if err := ev.Decode(&art); err != nil {
		return err
	}

	if art.Path == "" {
		return fmt.Errorf("%w: scraping_complete without csv_path", domain.ErrInvalidPayload)
	}

	s.store.SetArtifact(art.Path)

	s.log.WithField("csv_path", art.Path).Info("run artifact available")

	return nil
}
