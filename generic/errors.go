/*
errors.go - Centralized error types shared by the engines and their callers

PURPOSE:
  The engines themselves raise no domain errors: missing optional references
  degrade to zero contributions or synthetic buckets. The errors below belong
  to the boundary around them (input parsing, projection fetches, the slot
  guard) and let the API layer map failures to HTTP statuses.

ERROR CATEGORIES:
  1. Input errors - malformed dates, empty intervals, bad fiscal years
  2. Lookup errors - a session/enterprise/plan the caller asked for is unknown
  3. Coordination errors - the advisory slot lock is held elsewhere, or a
     save that must not double-book found a conflict

USAGE:
  if generic.IsNotFound(err) {
      writeError(w, http.StatusNotFound, "Session not found", err)
  }

SEE ALSO:
  - schedule/guard.go: returns ErrSlotLocked
  - api/handlers.go: maps these errors to HTTP statuses
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for malformed caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidInterval is returned when a slot ends at or before its start.
	ErrInvalidInterval = errors.New("invalid interval: end not after start")

	// ErrInvalidFiscalYear is returned for out-of-range fiscal years.
	ErrInvalidFiscalYear = errors.New("invalid fiscal year")

	// ErrSlotLocked is returned when another caller holds the advisory lock
	// for the same trainer or room on the same date.
	ErrSlotLocked = errors.New("slot resources locked by another operation")

	// ErrSlotConflict is returned when a save asked to be rejected on
	// conflict and the detector found one.
	ErrSlotConflict = errors.New("slot conflicts with existing bookings")

	// ErrInvalidTransition is returned when a document status change is not
	// allowed by its lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "session", "enterprise", "plan", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidIntervalError describes an empty or inverted time range.
type InvalidIntervalError struct {
	Date     TimePoint
	Interval Interval
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval %s on %s: end must be after start", e.Interval, e.Date)
}

func (e *InvalidIntervalError) Unwrap() error { return ErrInvalidInterval }

// TransitionError describes a rejected lifecycle move.
type TransitionError struct {
	Document string
	From     string
	To       string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Document, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSlotLocked)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidFiscalYear) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error should surface as a 409.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotLocked) || errors.Is(err, ErrSlotConflict)
}
