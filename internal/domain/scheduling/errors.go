package scheduling

import (
	"errors"
	"fmt"
)

// Error kinds returned by the booking engine. Callers match them with
// errors.Is; the message carries the detail.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrConflict       = errors.New("conflict")
	ErrForbidden      = errors.New("forbidden")
	ErrTransient      = errors.New("temporarily unavailable")

	// ErrSlotTaken means another booking committed the same slot first. The
	// caller should pick a different slot.
	ErrSlotTaken = fmt.Errorf("%w: slot already taken", ErrConflict)
)

// transient wraps an infrastructure failure unless it already carries a kind.
func transient(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrNotFound, ErrInvalidRequest, ErrConflict, ErrForbidden, ErrTransient} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
}
