package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for common business logic failures. All of them are rejected before
// persistence, so none of them ever produces a fan-out event.
var (
	// ErrValidation covers malformed send requests: empty content or a
	// conversation with yourself.
	ErrValidation = errors.New("message must carry text or media between two distinct identities")

	// ErrUnknownUser is returned when a participant identity does not exist.
	ErrUnknownUser = errors.New("participant identity does not exist")

	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("requested resource not found")

	// ErrNotParticipant is returned when a delete is attempted by someone
	// who is neither the sender nor the receiver.
	ErrNotParticipant = errors.New("requester is not a participant of this message")
)
