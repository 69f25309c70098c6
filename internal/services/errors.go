package services

import "errors"

// Analytics service errors
var (
	// Data store errors
	ErrNoEvents   = errors.New("no watch events loaded")
	ErrNoChapters = errors.New("no chapter table loaded")

	// Lookup errors
	ErrVideoNotFound = errors.New("video not found")

	// Chapter marker errors
	ErrChaptersUnavailable = errors.New("chapter markers require at least two chapters")

	// Request errors
	ErrInvalidTopSelection = errors.New("top selection must be non-negative")
)
