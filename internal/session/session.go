// Package session ties the transport, status store, classifier and log
// aggregator into the client core used by every run mode.
//
// All state is owned by the goroutine running Session.Run. Events from the
// transport and mutations requested by commands are applied there one at a
// time, in the order they arrive.
package session

import (
	"context"
	"io"
	"iter"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/logbuf"
	"github.com/sadewadee/mapminer/internal/stage"
	"github.com/sadewadee/mapminer/internal/status"
	"github.com/sadewadee/mapminer/internal/transport"
	"github.com/sadewadee/mapminer/tlmt"
)

// Transport is the part of transport.Channel the session drives
type Transport interface {
	Events() <-chan transport.Event
	Start(ctx context.Context, cfg domain.JobConfiguration) error
	Stop(ctx context.Context) error
	Status(ctx context.Context) (*domain.StatusPayload, error)
	FetchArtifact(ctx context.Context, path string) (io.ReadCloser, error)
}

// View is a consistent copy of the session state
type View struct {
	Snapshot    domain.Snapshot
	Pipeline    stage.Pipeline
	Connected   bool
	Artifact    domain.Artifact
	HasArtifact bool
	Rejected    int
	LogCount    int
}

// Session is the client core for one runner
type Session struct {
	id        string
	tr        Transport
	store     *status.Store
	logs      *logbuf.Aggregator
	router    *transport.Router
	ops       chan func()
	done      chan struct{}
	log       logrus.FieldLogger
	telemetry tlmt.Telemetry

	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the diagnostic logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithTelemetry sets the usage telemetry sink
func WithTelemetry(t tlmt.Telemetry) Option {
	return func(s *Session) {
		s.telemetry = t
	}
}

// WithAggregator replaces the transcript, e.g. to inject a clock
func WithAggregator(a *logbuf.Aggregator) Option {
	return func(s *Session) {
		s.logs = a
	}
}

// New creates a session over tr. Nothing happens until Run is called.
func New(tr Transport, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		tr:        tr,
		store:     status.New(),
		logs:      logbuf.New(),
		ops:       make(chan func()),
		done:      make(chan struct{}),
		log:       logrus.StandardLogger(),
		telemetry: tlmt.Discard,
		subs:      make(map[chan struct{}]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.WithFields(logrus.Fields{
		"component":  "session",
		"session_id": s.id,
	})

	s.router = s.routes()

	return s
}

// ID returns the random identifier of this session
func (s *Session) ID() string {
	return s.id
}

// Run applies events and command mutations until ctx ends
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	events := s.tr.Events()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.ops:
			fn()
			s.notify()
		case ev, ok := <-events:
			if !ok {
				s.log.Debug("event stream closed")
				events = nil

				continue
			}

			s.handle(ev)
			s.notify()
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})

	op := func() {
		defer close(finished)
		fn()
	}

	select {
	case s.ops <- op:
	case <-s.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	<-finished

	return nil
}

// View returns a copy of the current state
func (s *Session) View(ctx context.Context) (View, error) {
	var v View

	err := s.do(ctx, func() {
		snap := s.store.Current()
		art, has := s.store.Artifact()

		v = View{
			Snapshot:    snap,
			Pipeline:    stage.Classify(snap, has),
			Connected:   s.store.Connected(),
			Artifact:    art,
			HasArtifact: has,
			Rejected:    s.store.RejectedTransitions(),
			LogCount:    s.logs.Len(),
		}
	})

	return v, err
}

// Logs returns the transcript as of the call
func (s *Session) Logs(ctx context.Context) (iter.Seq[domain.LogEntry], error) {
	var seq iter.Seq[domain.LogEntry]

	err := s.do(ctx, func() {
		seq = s.logs.All()
	})

	return seq, err
}

// Tail returns the last n transcript entries
func (s *Session) Tail(ctx context.Context, n int) ([]domain.LogEntry, error) {
	var entries []domain.LogEntry

	err := s.do(ctx, func() {
		entries = s.logs.Tail(n)
	})

	return entries, err
}

// LogCursor marks a read position in the transcript
type LogCursor struct {
	generation int
	offset     int
}

// LogsSince returns the entries appended after cur and the cursor to pass
// next time. If the transcript was cleared in between, it returns the new
// transcript from its first entry.
func (s *Session) LogsSince(ctx context.Context, cur LogCursor) ([]domain.LogEntry, LogCursor, error) {
	var entries []domain.LogEntry

	err := s.do(ctx, func() {
		entries, cur.generation, cur.offset = s.logs.Since(cur.generation, cur.offset)
	})

	return entries, cur, err
}

// AppendLog adds a line to the transcript
func (s *Session) AppendLog(ctx context.Context, message string, level domain.Level) error {
	return s.do(ctx, func() {
		s.logs.Append(message, level)
	})
}

// ClearLogs empties the transcript
func (s *Session) ClearLogs(ctx context.Context) error {
	return s.do(ctx, func() {
		s.logs.Clear()
	})
}

// Subscribe returns a channel that receives a signal after each state change.
// Signals coalesce; read View to get the state. cancel releases the channel.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}

	return ch, cancel
}

// Done is closed once Run has returned
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Session) track(ctx context.Context, name string, props map[string]any) {
	if err := s.telemetry.Send(ctx, tlmt.NewEvent(name, props)); err != nil {
		s.log.WithError(err).Debug("telemetry event dropped")
	}
}
