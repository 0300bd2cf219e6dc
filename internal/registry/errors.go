package registry

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for registry lookups.
type ErrorCategory string

const (
	// ErrorTimeout indicates the registry took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorRateLimited indicates the registry answered 429
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorNotFound indicates the registry has no entry for the identifier
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorAuthentication indicates a rejected or missing bearer token
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorBadData indicates the registry returned a body we could not decode
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorProviderOutage indicates a 5xx or a transport failure
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorInternal indicates a failure on our side
	ErrorInternal ErrorCategory = "internal"
)

// Error wraps registry failures with a category.
type Error struct {
	Category   ErrorCategory
	Lookup     string
	Identifier string
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("registry %s %s [%s]: %s: %v", e.Lookup, e.Identifier, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("registry %s %s [%s]: %s", e.Lookup, e.Identifier, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func newError(category ErrorCategory, lookup, identifier, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Lookup:     lookup,
		Identifier: identifier,
		Message:    message,
		Underlying: underlying,
	}
}

// CategoryOf extracts the category from err, defaulting to ErrorInternal.
func CategoryOf(err error) ErrorCategory {
	var re *Error
	if errors.As(err, &re) {
		return re.Category
	}
	return ErrorInternal
}

// IsNotFound reports whether err means the registry has no entry.
func IsNotFound(err error) bool {
	return CategoryOf(err) == ErrorNotFound
}

// IsRateLimited reports whether err is a 429 from the registry.
func IsRateLimited(err error) bool {
	return CategoryOf(err) == ErrorRateLimited
}
