package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	tests := []struct {
		name     string
		context  string
		cause    error
		expected string
	}{
		{"simple", "reading superblock", errors.New("invalid signature"), "reading superblock: invalid signature"},
		{"empty context", "", errors.New("some error"), ": some error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapError(tt.context, tt.cause)
			require.EqualError(t, err, tt.expected)

			var h5err *H5Error
			require.True(t, errors.As(err, &h5err))
			require.Equal(t, tt.context, h5err.Context)
			require.Equal(t, tt.cause, errors.Unwrap(err))
		})
	}
}

func TestWrapError_Nil(t *testing.T) {
	require.NoError(t, WrapError("some operation", nil))
}

func TestWrapError_KeepsSentinels(t *testing.T) {
	err := WrapError("open group", WrapError("link lookup", ErrNotFound))
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "open group")
	require.Contains(t, err.Error(), "link lookup")
}

func TestCorruptfAndUnsupportedf(t *testing.T) {
	err := Corruptf("bad version %d", 7)
	require.ErrorIs(t, err, ErrCorrupt)
	require.Contains(t, err.Error(), "bad version 7")

	err = Unsupportedf("dense link storage")
	require.ErrorIs(t, err, ErrUnsupported)
	require.Equal(t, "dense link storage: not supported", err.Error())
}
