package entities

import "errors"

var (
	// ErrInvalidEvent marks event data that cannot be applied. Retrying will not help.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidTransition is returned when a proposal event does not fit the lifecycle
	ErrInvalidTransition = errors.New("invalid proposal status transition")

	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("not found")
)
