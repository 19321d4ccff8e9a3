package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no posting exists for a given id.
var ErrNotFound = errors.New("posting not found")

// ErrUpstreamUnavailable is wrapped around every scrape producer failure,
// including timeouts.
var ErrUpstreamUnavailable = errors.New("scrape producer unavailable")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// StorageError is returned when the durable store rejects a read or write.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err carries a *StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
