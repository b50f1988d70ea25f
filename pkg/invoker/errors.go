package invoker

import (
	"fmt"
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"github.com/pkg/errors"
)

const maxOutputInError = 256

// MalformedResultError is returned when command output cannot be decoded, or when the decoded
// result lacks a field the caller requires. Inside the retry loop it is retryable.
type MalformedResultError struct {
	Field  string
	Output string
	Err    error
}

func (e *MalformedResultError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed result: missing or invalid field %q", e.Field)
	}
	return fmt.Sprintf("malformed result %q: %v", e.Output, e.Err)
}

func (e *MalformedResultError) Unwrap() error {
	return e.Err
}

// RetriesExhaustedError is terminal: every attempt failed and the last cause is kept.
type RetriesExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts (%s): %v", e.Op, e.Attempts, e.Kind(), e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// Kind classifies the exhaustion by its last underlying cause.
func (e *RetriesExhaustedError) Kind() string {
	var (
		be *backend.Error
		me *MalformedResultError
	)
	switch {
	case errors.As(e.Err, &be):
		return "backend"
	case errors.As(e.Err, &me):
		return "malformed"
	default:
		return "unknown"
	}
}

func truncate(s string) string {
	if len(s) <= maxOutputInError {
		return s
	}
	return s[:maxOutputInError] + "..."
}
