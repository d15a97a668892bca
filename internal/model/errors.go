package model

import "errors"

var (
	// ErrUnauthorized means the actor lacks the role, ownership or department match.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState means the operation is not allowed in the entity's current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrDuplicateAttempt means the student already has a result for the exam.
	ErrDuplicateAttempt = errors.New("exam already taken")
	// ErrAdapterFailure means the question generator failed. It never reaches callers
	// of exam creation; the fallback bank is used instead.
	ErrAdapterFailure = errors.New("question generator failed")
	// ErrValidation means malformed input.
	ErrValidation = errors.New("validation failed")
)
