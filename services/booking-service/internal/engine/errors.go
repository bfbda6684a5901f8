package engine

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrClosed       = errors.New("clinic closed")
	ErrConflict     = errors.New("slot no longer available")
	ErrExpiredHold  = errors.New("hold expired or already used")
	ErrUnauthorized = errors.New("unauthorized")
)

type ConflictReason string

const (
	ConflictBooked     ConflictReason = "slot-booked"
	ConflictHeld       ConflictReason = "slot-held"
	ConflictBlocked    ConflictReason = "slot-blocked"
	ConflictConcurrent ConflictReason = "concurrent-request"
)

// ConflictError is returned when the requested interval is taken. Callers
// should re-query availability and pick another slot.
type ConflictError struct {
	Reason ConflictReason
}

func (e *ConflictError) Error() string { return fmt.Sprintf("%s (%s)", ErrConflict, e.Reason) }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// Retryable reports whether the caller may succeed by choosing another slot
// or retrying the flow.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrExpiredHold)
}

// ReasonOf extracts the conflict reason, if any.
func ReasonOf(err error) ConflictReason {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return ""
}
