package domain

import "errors"

// Engine errors. Callers classify with errors.Is.
var (
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrOutOfWindowUnconfirmed = errors.New("dose is outside the medication window and was not confirmed")
	ErrNotFound               = errors.New("not found")
	ErrStoreFailure           = errors.New("store failure")
)

// Validation errors
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidTimeOfDay = errors.New("time of day must be HH:MM between 00:00 and 23:59")
)
