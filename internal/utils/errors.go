package utils

import (
	"errors"
	"fmt"
)

// Engine sentinels. Callers classify failures with errors.Is.
var (
	// ErrNotFound reports a missing link, attribute or message.
	ErrNotFound = errors.New("not found")

	// ErrExists reports a name collision inside a group or attribute set.
	ErrExists = errors.New("already exists")

	// ErrUnsupported reports a valid HDF5 feature this engine does not implement.
	ErrUnsupported = errors.New("not supported")

	// ErrCorrupt reports structurally invalid file contents.
	ErrCorrupt = errors.New("corrupt or not an HDF5 file")

	// ErrReadOnly reports a mutation attempted through a read-only file.
	ErrReadOnly = errors.New("file opened read-only")

	// ErrLocked reports that another opener holds a conflicting file lock.
	ErrLocked = errors.New("file is locked by another opener")
)

// H5Error represents a structured HDF5 error.
type H5Error struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *H5Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *H5Error) Unwrap() error {
	return e.Cause
}

// WrapError creates a contextual error. A nil cause stays nil.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &H5Error{
		Context: context,
		Cause:   cause,
	}
}

// Corruptf formats a message and wraps it with ErrCorrupt.
func Corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// Unsupportedf formats a message and wraps it with ErrUnsupported.
func Unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnsupported)
}
