package native

import (
	"errors"

	"github.com/scigolib/h5store/internal/utils"
)

// Errors returned by this package. The first six are the engine sentinels
// of internal/utils so callers need only one import to classify failures.
var (
	ErrNotFound    = utils.ErrNotFound
	ErrExists      = utils.ErrExists
	ErrUnsupported = utils.ErrUnsupported
	ErrCorrupt     = utils.ErrCorrupt
	ErrReadOnly    = utils.ErrReadOnly
	ErrLocked      = utils.ErrLocked

	// ErrClosed reports use of a file or object handle after Close.
	ErrClosed = errors.New("handle is closed")

	// ErrNotGroup reports a path component that names a dataset or other
	// non-group object.
	ErrNotGroup = errors.New("not a group")

	// ErrNotDataset reports a dataset operation on another kind of object.
	ErrNotDataset = errors.New("not a dataset")

	// ErrInvalidName reports a link or attribute name that is empty or
	// contains a path separator.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidSpec reports dataset creation parameters that cannot
	// describe a dataset, or data that does not fit one.
	ErrInvalidSpec = errors.New("invalid dataset parameters")
)
