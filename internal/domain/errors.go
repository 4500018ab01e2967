package domain

import "errors"

var (
	// ErrConfigAbsent means no threshold row exists. Recoverable in the loop.
	ErrConfigAbsent = errors.New("threshold config absent")

	ErrNotFound            = errors.New("alert not found")
	ErrAlreadyAcknowledged = errors.New("alert already acknowledged")
	ErrInvalidStatus       = errors.New("invalid alert status")
	ErrInvalidThresholds   = errors.New("invalid thresholds")

	// ErrPersistence wraps any store failure; the cause is wrapped alongside.
	ErrPersistence = errors.New("persistence failure")
)
