package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Packages wrap these in their own
// errors so callers can branch with errors.Is.
//
// - ErrNotFound: row or remote record does not exist
// - ErrUnavailable: upstream could not serve the request after retries
// - ErrInvalidInput: value rejected before any I/O happened
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidInput = errors.New("invalid input")
)
