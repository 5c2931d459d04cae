package errs

import "errors"

// Base error kinds. Domain packages wrap these with %w so the transport layer can
// classify failures with errors.Is without knowing every concrete error.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrConcurrency       = errors.New("concurrent access conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
)
