package service

import "errors"

var (
	ErrValidation        = errors.New("invalid arguments")
	ErrNotFound          = errors.New("no matching stock")
	ErrUnauthorized      = errors.New("not authorized")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("too many concurrent updates")

	errOutOfStep = errors.New("option does not match the current step")
)

// usageError carries the fixed usage line shown to the user.
type usageError struct {
	usage string
}

func (e *usageError) Error() string { return "usage: " + e.usage }

func (e *usageError) Unwrap() error { return ErrValidation }

func newUsageError(usage string) error {
	return &usageError{usage: usage}
}
