package models

import (
	"errors"
	"fmt"
)

// Error variables for the interview error taxonomy.
var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionAlreadyComplete = errors.New("session already complete")
	ErrStoreUnavailable       = errors.New("checkpoint store unavailable")
	ErrEmptySessionID         = errors.New("session id cannot be empty")
	ErrMalformedInput         = errors.New("malformed input")
)

// GenerationError reports a failed next-question request. The turn was not
// persisted and may be retried with the same input.
type GenerationError struct {
	SessionID string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("question generation failed for session %s: %v", e.SessionID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the same call.
func (e *GenerationError) Retryable() bool { return true }

// SynthesisError reports a failed call to the synthesis collaborator.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("profile synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the same call.
func (e *SynthesisError) Retryable() bool { return true }

// SynthesisParseError reports synthesis output that was not a valid profile.
// Raw holds the unparsed model output for diagnostics.
type SynthesisParseError struct {
	Raw string
	Err error
}

func (e *SynthesisParseError) Error() string {
	return fmt.Sprintf("profile synthesis output could not be parsed: %v", e.Err)
}

func (e *SynthesisParseError) Unwrap() error { return e.Err }

// IsRetryable reports whether err (or anything it wraps) is marked retryable.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return errors.Is(err, ErrStoreUnavailable)
}
