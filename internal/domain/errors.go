package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrValidation         = errors.New("validation failed")
	ErrServiceUnavailable = errors.New("rendering service unavailable")
	ErrServiceRejected    = errors.New("rendering service rejected request")
	ErrAuthMismatch       = errors.New("webhook secret mismatch")
	ErrPollTimeout        = errors.New("poll budget exhausted")
	ErrGenerationFormat   = errors.New("malformed generation response")
	ErrGenerationTimeout  = errors.New("generation timed out")
	ErrPhaseConflict      = errors.New("phase transition not permitted")
)
