package logbuf

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadewadee/mapminer/internal/domain"
)

func fakeClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func TestAppendKeepsReceiptOrder(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := New(WithClock(fakeClock(start)))

	a.Append("first", domain.ParseLevel("info"))
	a.Append("second", domain.LevelWarning)
	a.Append("second", domain.LevelWarning)

	entries := slices.Collect(a.All())
	require.Len(t, entries, 3)

	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, domain.LevelInfo, entries[0].Level)
	assert.Equal(t, start.Add(time.Second), entries[0].Timestamp)
	assert.Equal(t, entries[1], domain.LogEntry{Message: "second", Level: domain.LevelWarning, Timestamp: start.Add(2 * time.Second)})
	assert.True(t, entries[2].Timestamp.After(entries[1].Timestamp), "duplicates are kept")
}

func TestAllIsSnapshot(t *testing.T) {
	a := New()
	a.Append("one", domain.LevelInfo)

	seq := a.All()
	a.Append("two", domain.LevelInfo)

	assert.Len(t, slices.Collect(seq), 1)
	assert.Len(t, slices.Collect(a.All()), 2)
}

func TestAllStopsEarly(t *testing.T) {
	a := New()
	for i := 0; i < 5; i++ {
		a.Append("line", domain.LevelInfo)
	}

	n := 0
	for range a.All() {
		n++
		if n == 2 {
			break
		}
	}

	assert.Equal(t, 2, n)
}

func TestClear(t *testing.T) {
	a := New()
	a.Append("one", domain.LevelError)

	seq := a.All()
	a.Clear()
	a.Append("fresh", domain.LevelSuccess)

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, "one", slices.Collect(seq)[0].Message, "earlier reads are unaffected")
	assert.Equal(t, "fresh", slices.Collect(a.All())[0].Message)
}

func TestTail(t *testing.T) {
	a := New()
	for _, m := range []string{"a", "b", "c"} {
		a.Append(m, domain.LevelInfo)
	}

	tail := a.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, "b", tail[0].Message)
	assert.Equal(t, "c", tail[1].Message)

	assert.Len(t, a.Tail(10), 3)
	assert.Nil(t, a.Tail(0))
}

func TestSince(t *testing.T) {
	a := New()
	a.Append("one", domain.LevelInfo)
	a.Append("two", domain.LevelInfo)

	entries, gen, offset := a.Since(0, 0)
	require.Len(t, entries, 2)
	assert.Equal(t, 0, gen)
	assert.Equal(t, 2, offset)

	a.Append("three", domain.LevelInfo)
	entries, gen, offset = a.Since(gen, offset)
	require.Len(t, entries, 1)
	assert.Equal(t, "three", entries[0].Message)

	// A clear followed by more appends than were read before.
	a.Clear()
	for _, msg := range []string{"a", "b", "c", "d"} {
		a.Append(msg, domain.LevelInfo)
	}

	entries, gen, offset = a.Since(gen, offset)
	require.Len(t, entries, 4)
	assert.Equal(t, "a", entries[0].Message)
	assert.Equal(t, 1, gen)
	assert.Equal(t, 4, offset)

	entries, _, _ = a.Since(gen, offset)
	assert.Empty(t, entries)
}
