package domain

import "errors"

// Closed set of engine error kinds. Callers branch with errors.Is; everything
// else is an internal error.
var (
	// ErrNotFound: a referenced donor, request, donation or hospital is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition: a status change not permitted by the state machine.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation: out-of-range amount, urgency, weight, height or a
	// malformed blood type. Rejected before any mutation is attempted.
	ErrValidation = errors.New("validation failed")

	// ErrConflict: a concurrent transition won the race; the caller may retry.
	ErrConflict = errors.New("conflicting concurrent update")
)
