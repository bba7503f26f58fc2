package index

import "fmt"

// LoadError represents a policy repository that could not be indexed.
type LoadError struct {
	// Path is the file or directory that failed.
	Path string

	// Message describes the error.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to index policies at %q: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to index policies at %q: %s", e.Path, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// FolderNotFoundError is returned when no policy directory matches a folder name.
type FolderNotFoundError struct {
	Folder string
}

// Error implements the error interface.
func (e *FolderNotFoundError) Error() string {
	return fmt.Sprintf("no policy folder matches %q", e.Folder)
}
