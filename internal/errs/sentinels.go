// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrInvalidInput indicates a malformed, empty or oversized request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization
	// (bad secret, bad credentials, bad signature).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUpstream indicates a failure or timeout of an external dependency
	// (Telegram Bot API, LLM gateway).
	ErrUpstream = errors.New("upstream failure")
)
