// Package conversation contains the pure business logic for conversations.
// This is part of the Functional Core - no I/O, only pure functions.
package conversation

import "errors"

// Error kinds. Every error returned by the conversation service wraps exactly
// one of these so callers can classify failures with errors.Is.
var (
	// ErrInvalidInput covers blank content and self-messaging.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when a non-participant tries to post.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound covers missing conversations and non-participants reading or
	// deleting one. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the store could not apply a write. Safe to retry.
	ErrConflict = errors.New("write conflict")
)
