package model

import "errors"

var (
	// ErrSourceUnavailable is returned when the catalog mapping or a remote
	// query cannot be reached or returns malformed data.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrResolutionMiss marks a designator token that matched nothing.
	ErrResolutionMiss = errors.New("designator not resolved")
	// ErrEmptyHistory marks a catalog number without records in range.
	ErrEmptyHistory = errors.New("empty history")
	// ErrCredentialFailure is returned for missing or rejected service
	// credentials.
	ErrCredentialFailure = errors.New("credential failure")
)
