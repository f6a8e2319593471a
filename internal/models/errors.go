package models

import "errors"

// Error kinds shared across the service. Wrap with fmt.Errorf("...: %w", ...)
// and classify with errors.Is at the HTTP boundary.
var (
	// ErrValidation: caller supplied malformed or incomplete input. 400.
	ErrValidation = errors.New("validation error")

	// ErrNotFound: referenced entity does not exist. 404.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState: transition attempted on an already-terminal record.
	// A caller logic bug, 409.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrBackend: object store, inference or relational store unreachable
	// or erroring. 500.
	ErrBackend = errors.New("backend unavailable")

	// ErrUpstreamAuth: an external dependency rejected our credentials. 401.
	ErrUpstreamAuth = errors.New("upstream auth failure")
)
