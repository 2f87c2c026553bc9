package h5store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a//b/./c/", "a/b/c"},
		{"/a/./b", "/a/b"},
		{"/", "/"},
		{"", ""},
		{".", ""},
		{"//x//", "/x"},
		{"./a/.", "a"},
		{"/data/volume", "/data/volume"},
		{"a...b/.c", "a...b/.c"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := Normalize(got)
			require.NoError(t, err)
			assert.Equal(t, got, again, "idempotent")
		})
	}
}

func TestNormalizeRejectsParentSegments(t *testing.T) {
	for _, p := range []string{"a/../b", "../a", "/a/..", "..", "/a/b/../../c"} {
		_, err := Normalize(p)
		require.ErrorIs(t, err, ErrMalformed, p)
	}
}

func TestAbsolute(t *testing.T) {
	for in, want := range map[string]string{
		"":       "/",
		"/":      "/",
		"a/b":    "/a/b",
		"/a/b/":  "/a/b",
		"./a//b": "/a/b",
	} {
		got, err := absolute("test", in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}

	_, err := absolute("test", "a/..")
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrMalformed, e.Kind)
	assert.Equal(t, "a/..", e.Path)
}

func TestSplitJoin(t *testing.T) {
	parent, name := split("/a/b/c")
	assert.Equal(t, "/a/b", parent)
	assert.Equal(t, "c", name)

	parent, name = split("/a")
	assert.Equal(t, "/", parent)
	assert.Equal(t, "a", name)

	assert.Equal(t, "/a", join("/", "a"))
	assert.Equal(t, "/a/b", join("/a", "b"))
}
