package session

import "github.com/pkg/errors"

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusOpen      Status = "open"
	StatusPaused    Status = "paused"
	StatusClosed    Status = "closed"
)

// transitions lists, for each state, the states it may move to.
var transitions = map[Status][]Status{
	StatusScheduled: {StatusOpen},
	StatusOpen:      {StatusPaused, StatusClosed},
	StatusPaused:    {StatusOpen, StatusClosed},
	StatusClosed:    {},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition (wrapped with the states) when from -> to is not allowed.
func ValidateTransition(from, to Status) error {
	if _, known := transitions[from]; !known {
		return errors.Wrapf(ErrInvalidTransition, "unknown status %q", from)
	}
	if !CanTransition(from, to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}
	return nil
}
