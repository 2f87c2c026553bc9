package h5store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5store/internal/native"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{context.Canceled, ErrCancelled},
		{fmt.Errorf("chunk 3: %w", context.DeadlineExceeded), ErrCancelled},
		{native.ErrClosed, ErrContainerNotOpen},
		{fmt.Errorf("/a/b: %w", native.ErrNotFound), ErrNotFound},
		{&fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist}, ErrNotFound},
		{native.ErrExists, ErrAlreadyExists},
		{native.ErrLocked, ErrLockConflict},
		{native.ErrReadOnly, ErrPermissionDenied},
		{fs.ErrPermission, ErrPermissionDenied},
		{native.ErrNotGroup, ErrTypeMismatch},
		{native.ErrNotDataset, ErrTypeMismatch},
		{native.ErrCorrupt, ErrMalformed},
		{native.ErrInvalidName, ErrMalformed},
		{native.ErrInvalidSpec, ErrMalformed},
		{fmt.Errorf("decode: %w", ErrTypeMismatch), ErrTypeMismatch},
		{native.ErrUnsupported, ErrIOFailure},
		{errors.New("disk on fire"), ErrIOFailure},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	require.NoError(t, wrap("read dataset", "/x", nil))

	cause := fmt.Errorf("/x: %w", native.ErrNotFound)
	err := wrap("read dataset", "/x", cause)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, native.ErrNotFound)
	assert.Equal(t, "h5store: read dataset /x: /x: not found", err.Error())

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "read dataset", e.Op)
	assert.Same(t, err, wrap("copy", "/y", err), "an *Error passes through")

	err = &Error{Op: "open", Kind: ErrLockConflict}
	assert.Equal(t, "h5store: open: locked by another opener", err.Error())
}
