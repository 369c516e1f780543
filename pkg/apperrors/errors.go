package apperrors

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrForbidden             = errors.New("forbidden")
	ErrValidationFailed      = errors.New("validation failed")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrAlreadyPromoted       = errors.New("suggestion already promoted")
	ErrPollInProgress        = errors.New("poll already in progress")
)
