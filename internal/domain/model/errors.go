package model

import "errors"

// Sentinel errors for the promise ledger. Every failing operation wraps one of
// these so callers can match with errors.Is regardless of the added context.
var (
	// ErrValidation indicates malformed input; nothing was persisted.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidQuery indicates ambiguous or missing selector arguments.
	ErrInvalidQuery = errors.New("invalid query")

	ErrTokenNotFound   = errors.New("token not found")
	ErrPromiseNotFound = errors.New("promise not found")

	// ErrDuplicatePromise is an idempotent-rejection signal: the promise
	// already exists and no new record was created.
	ErrDuplicatePromise = errors.New("duplicate promise")

	// ErrAlreadyEvaluated means the promise already has its one verdict.
	// The existing evaluation stands; retrying with different data cannot succeed.
	ErrAlreadyEvaluated = errors.New("promise already evaluated")
)
