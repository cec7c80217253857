package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoArtifact     = errors.New("no artifact available")
	ErrSessionClosed  = errors.New("session closed")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid event payload")
)

// ValidationError is returned before dispatch when a job configuration
// field is out of bounds. It is never sent to the runner.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RunnerErrorKind categorizes command failures
type RunnerErrorKind string

const (
	RunnerErrorRejected     RunnerErrorKind = "rejected"
	RunnerErrorTimeout      RunnerErrorKind = "timeout"
	RunnerErrorDisconnected RunnerErrorKind = "disconnected"
)

// RunnerError represents a failed command against the runner
type RunnerError struct {
	Kind   RunnerErrorKind
	Detail string
	Status int
	Cause  error
}

// Error implements the error interface
func (e *RunnerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap returns the underlying error for error unwrapping
func (e *RunnerError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns true if re-issuing the command by hand may succeed
func (e *RunnerError) IsRetryable() bool {
	switch e.Kind {
	case RunnerErrorTimeout, RunnerErrorDisconnected:
		return true
	default:
		return false
	}
}

// UserMessage returns the text shown in the transcript
func (e *RunnerError) UserMessage() string {
	switch e.Kind {
	case RunnerErrorTimeout:
		return "runner did not answer in time"
	case RunnerErrorDisconnected:
		return "runner is unreachable"
	default:
		if e.Detail == "" {
			return "request rejected"
		}
		return e.Detail
	}
}

// NewRejectedError creates an error for a non-success runner response
func NewRejectedError(status int, detail string) *RunnerError {
	return &RunnerError{
		Kind:   RunnerErrorRejected,
		Detail: detail,
		Status: status,
	}
}

// NewTimeoutError creates an error for a command that exceeded its deadline
func NewTimeoutError(cause error) *RunnerError {
	return &RunnerError{
		Kind:   RunnerErrorTimeout,
		Detail: "request timed out",
		Cause:  cause,
	}
}

// NewDisconnectedError creates an error for a runner that could not be reached
func NewDisconnectedError(cause error) *RunnerError {
	return &RunnerError{
		Kind:   RunnerErrorDisconnected,
		Detail: "connection failed",
		Cause:  cause,
	}
}

// ChannelError reports the loss of the event stream.
// It never clears snapshot or transcript state.
type ChannelError struct {
	Source string
	Cause  error
}

// Error implements the error interface
func (e *ChannelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s event stream lost: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("%s event stream lost", e.Source)
}

// Unwrap returns the underlying error for error unwrapping
func (e *ChannelError) Unwrap() error {
	return e.Cause
}
