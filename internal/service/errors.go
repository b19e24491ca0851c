package service

import "errors"

// Sentinel errors for the two failure classes the handler maps to specific
// HTTP statuses. Callers check with errors.Is; anything else is an internal
// error (500). Go uses sentinel errors (predefined error values) instead of
// exception types.
var (
	// ErrInvalidImage means the upload failed validation: wrong content
	// type, oversized, or bytes that don't decode as an image. Maps to 400.
	ErrInvalidImage = errors.New("invalid image upload")

	// ErrUpstream means the vision API was unavailable or returned a
	// malformed response. The analysis is essential, so this maps to 502.
	ErrUpstream = errors.New("vision upstream unavailable")
)
