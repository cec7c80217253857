package domain

import (
	"strings"
	"time"
)

// Level is the severity of a transcript entry
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// ParseLevel maps a runner level name to a Level, defaulting to info
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(LevelSuccess):
		return LevelSuccess
	case string(LevelWarning), "warn":
		return LevelWarning
	case string(LevelError):
		return LevelError
	default:
		return LevelInfo
	}
}

// LogEntry is one line of the run transcript. Entries are never mutated.
type LogEntry struct {
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// LogPayload is the wire shape of a log event.
// The runner timestamp is ignored; receipt time is authoritative.
type LogPayload struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}
