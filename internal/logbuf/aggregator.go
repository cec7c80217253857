// Package logbuf keeps the user-visible run transcript.
package logbuf

import (
	"iter"
	"time"

	"github.com/sadewadee/mapminer/internal/domain"
)

// Aggregator is an append-only, receipt-ordered list of log entries.
// It is not safe for concurrent use.
type Aggregator struct {
	entries    []domain.LogEntry
	generation int
	now        func() time.Time
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClock overrides the receipt clock
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// New creates an empty aggregator
func New(opts ...Option) *Aggregator {
	a := &Aggregator{now: time.Now}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Append stamps message with the receipt time and adds it to the transcript
func (a *Aggregator) Append(message string, level domain.Level) domain.LogEntry {
	entry := domain.LogEntry{
		Message:   message,
		Level:     level,
		Timestamp: a.now(),
	}

	a.entries = append(a.entries, entry)

	return entry
}

// Clear empties the transcript and starts a new generation
func (a *Aggregator) Clear() {
	a.entries = nil
	a.generation++
}

// Since returns a copy of the entries after offset in generation gen,
// together with the cursor for the next call. A stale generation restarts
// from the first entry.
func (a *Aggregator) Since(gen, offset int) ([]domain.LogEntry, int, int) {
	if gen != a.generation || offset > len(a.entries) {
		offset = 0
	}

	out := make([]domain.LogEntry, len(a.entries)-offset)
	copy(out, a.entries[offset:])

	return out, a.generation, len(a.entries)
}

// Len returns the number of entries
func (a *Aggregator) Len() int {
	return len(a.entries)
}

// All returns the entries as of the call. Later appends are not visible
// to the returned sequence.
func (a *Aggregator) All() iter.Seq[domain.LogEntry] {
	snapshot := a.entries[:len(a.entries):len(a.entries)]

	return func(yield func(domain.LogEntry) bool) {
		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}

// Tail returns a copy of the last n entries
func (a *Aggregator) Tail(n int) []domain.LogEntry {
	if n <= 0 {
		return nil
	}

	start := max(len(a.entries)-n, 0)
	out := make([]domain.LogEntry, len(a.entries)-start)
	copy(out, a.entries[start:])

	return out
}
