package contract

import (
	"errors"
	"fmt"
)

// ErrNoInteractions is returned when an adaptation step is given no conversations.
var ErrNoInteractions = errors.New("no interactions")

// LoadError represents a contract that could not be read, parsed or validated.
type LoadError struct {
	// Path is the file that failed, empty for in-memory data.
	Path string

	// Reason is a short classification: "read", "parse" or "validate".
	Reason string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to load contract (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("failed to load contract %s (%s): %v", e.Path, e.Reason, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// IsLoadError reports whether err is or wraps a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
