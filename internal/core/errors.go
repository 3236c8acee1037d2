package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an event or summary does not exist for the owner.
	ErrNotFound = errors.New("not found")

	// ErrPayloadRejected marks a coaching payload that failed normalization.
	ErrPayloadRejected = errors.New("coaching payload rejected")

	// ErrSummarySync wraps every failure of the summary sync path.
	ErrSummarySync = errors.New("summary sync failed")
)

// ValidationError reports a caller-supplied field that cannot be stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StoreError wraps a failure of the document store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// CompletionError is returned by a completer on a non-success response,
// a timeout, or an empty completion. StatusCode is 0 for transport failures.
type CompletionError struct {
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("completion failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Retryable reports whether the request may succeed on a later attempt.
func (e *CompletionError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// RejectPayload builds an ErrPayloadRejected error carrying the reason.
func RejectPayload(reason string) error {
	return fmt.Errorf("%w: %s", ErrPayloadRejected, reason)
}
