package h5store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/scigolib/h5store/internal/native"
)

// Error kinds. Every error a Container operation returns is an *Error
// whose Kind is one of the first nine; errors.Is matches it against the
// kind and against the underlying cause.
var (
	// ErrContainerNotOpen reports use of a Container after Close or a
	// failed Open.
	ErrContainerNotOpen = errors.New("container is not open")

	// ErrNotFound reports a missing file, group, dataset or attribute.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists reports a name collision.
	ErrAlreadyExists = errors.New("already exists")

	// ErrTypeMismatch reports a stored type or shape that cannot be read
	// into the requested value, or a path naming the other kind of object.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrPermissionDenied reports access refused by the file system.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrLockConflict reports a file held by another opener in a
	// conflicting mode.
	ErrLockConflict = errors.New("locked by another opener")

	// ErrMalformed reports a bad path or a file that is not a valid
	// container.
	ErrMalformed = errors.New("malformed")

	// ErrIOFailure reports any other failure of the storage engine.
	ErrIOFailure = errors.New("I/O failure")

	// ErrCancelled reports a transfer stopped through its Progress.
	ErrCancelled = errors.New("cancelled")
)

// Causes joined into an Error next to its kind.
var (
	// ErrUnsupported marks valid container features this package does not
	// handle, such as variable-length text or dense attribute storage.
	ErrUnsupported = native.ErrUnsupported

	// ErrPartialCopy marks a CopyObject failure that left already copied
	// objects in the destination. They are not rolled back.
	ErrPartialCopy = errors.New("destination holds a partial copy that was not rolled back")
)

// Error describes a failed Container operation.
type Error struct {
	Op   string // operation, such as "read dataset"
	Path string // object path or file name
	Kind error  // one of the error kinds
	Err  error  // underlying cause
}

func (e *Error) Error() string {
	msg := "h5store: " + e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + ": " + e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// wrap turns an engine error into an *Error. A nil err stays nil and an
// *Error passes through unchanged.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Op: op, Path: path, Kind: classify(err), Err: err}
}

// fail builds an *Error of the given kind from a formatted cause.
func fail(op, path string, kind error, format string, args ...any) error {
	return &Error{Op: op, Path: path, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// kinds lists the error kinds in classification order.
var kinds = []error{
	ErrCancelled, ErrContainerNotOpen, ErrNotFound, ErrAlreadyExists, ErrTypeMismatch,
	ErrPermissionDenied, ErrLockConflict, ErrMalformed, ErrIOFailure,
}

// classify maps engine and file system errors onto the error kinds. An
// error already wrapping a kind keeps it.
func classify(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ErrCancelled
	case errors.Is(err, native.ErrClosed):
		return ErrContainerNotOpen
	case errors.Is(err, native.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, native.ErrExists), errors.Is(err, fs.ErrExist):
		return ErrAlreadyExists
	case errors.Is(err, native.ErrLocked):
		return ErrLockConflict
	case errors.Is(err, native.ErrReadOnly), errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, native.ErrNotGroup), errors.Is(err, native.ErrNotDataset):
		return ErrTypeMismatch
	case errors.Is(err, native.ErrCorrupt),
		errors.Is(err, native.ErrInvalidName),
		errors.Is(err, native.ErrInvalidSpec):
		return ErrMalformed
	}
	return ErrIOFailure
}
