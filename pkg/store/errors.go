package store

import "errors"

// ErrClosed is returned by every call made after Shutdown.
var ErrClosed = errors.New("store is shut down")

// NotFoundError is returned when an observation id does not exist.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "observation not found"
	}

	return "observation not found: " + e.ID
}

// ErrMissingDedupeHash rejects events that cannot be deduplicated.
var ErrMissingDedupeHash = errors.New("event has no dedupe hash")

// Validate checks the fields every store requires before recording.
func Validate(env Envelope) error {
	if env.Event.DedupeHash == "" {
		return ErrMissingDedupeHash
	}
	return nil
}
