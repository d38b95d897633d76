package domain

import "errors"

var (
	// ErrValidation indicates the caller sent unusable input.
	ErrValidation = errors.New("validation error")

	// ErrUpstream indicates the AI service failed, timed out, or returned nothing usable.
	ErrUpstream = errors.New("upstream error")

	// ErrSessionCorrupted indicates a stored conversation violates turn alternation.
	ErrSessionCorrupted = errors.New("session corrupted")

	// ErrStorage indicates the session store backend failed.
	ErrStorage = errors.New("storage error")
)
