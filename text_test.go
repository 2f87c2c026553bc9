package h5store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/native"
)

func TestTextRoundTrip(t *testing.T) {
	c, path := newContainer(t)
	texts := map[string]string{
		"/ascii":   "segmentation v2",
		"/utf8":    "Größe 3µm ✓",
		"/empty":   "",
		"/long":    strings.Repeat("abcdefgh", 1000),
		"/padding": "trailing spaces stay   ",
		"/nul":     "ends in NUL\x00\x00",
	}
	for p, s := range texts {
		require.NoError(t, c.WriteText(p, s))
	}
	require.NoError(t, c.Close())

	c = openContainer(t, path, ReadOnly)
	for p, s := range texts {
		got, err := c.ReadText(p)
		require.NoError(t, err, p)
		assert.Equal(t, s, got, p)
		assert.Len(t, got, len(s), p)
	}
	info, err := c.Info("/long")
	require.NoError(t, err)
	assert.Equal(t, "contiguous", info.Layout)
	assert.Equal(t, Text, info.Type)
}

func TestTextReplace(t *testing.T) {
	c, _ := newContainer(t)
	require.NoError(t, c.WriteText("/t", "short"))
	require.NoError(t, c.WriteText("/t", "a longer value"))
	got, err := c.ReadText("/t")
	require.NoError(t, err)
	assert.Equal(t, "a longer value", got)

	require.NoError(t, WriteDataset(c, "/t", ScalarOf(2.0)))
	dt, err := c.DatasetType("/t")
	require.NoError(t, err)
	assert.Equal(t, Float64, dt)
}

func TestTextFromBytes(t *testing.T) {
	c, _ := newContainer(t)
	raw := []byte("legacy")
	signed := make([]int8, len(raw))
	for i, b := range raw {
		signed[i] = int8(b)
	}
	require.NoError(t, WriteDataset(c, "/chars", SliceOf(signed)))
	got, err := c.ReadText("/chars")
	require.NoError(t, err)
	assert.Equal(t, "legacy", got)

	require.NoError(t, WriteAttribute(c, "chars", "/", SliceOf(raw)))
	got, err = c.ReadTextAttribute("chars", "/")
	require.NoError(t, err)
	assert.Equal(t, "legacy", got)
}

func TestTextTypeMismatch(t *testing.T) {
	c, _ := newContainer(t)
	require.NoError(t, WriteDataset(c, "/floats", SliceOf([]float32{1, 2})))
	require.NoError(t, WriteDataset(c, "/matrix", NewArray[int8](2, 2)))

	_, err := c.ReadText("/floats")
	require.ErrorIs(t, err, ErrTypeMismatch)
	_, err = c.ReadText("/matrix")
	require.ErrorIs(t, err, ErrTypeMismatch, "bytes must be one-dimensional")
	_, err = c.ReadText("/missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVariableLengthTextUnsupported(t *testing.T) {
	c, _ := newContainer(t)
	vlen := &core.DatatypeMessage{Class: core.DatatypeVarLen, Version: 1, Size: 16, ClassBitField: 0x01}
	require.True(t, vlen.IsVarString())

	o, err := c.f.OpenObject("/")
	require.NoError(t, err)
	require.NoError(t, o.WriteAttribute(&core.Attribute{
		Name:      "vlen",
		Datatype:  vlen,
		Dataspace: core.NewDataspace(nil),
		Data:      make([]byte, 16),
	}))
	require.NoError(t, o.Close())

	_, err = c.ReadTextAttribute("vlen", "/")
	require.ErrorIs(t, err, ErrTypeMismatch)
	require.ErrorIs(t, err, ErrUnsupported)
	require.ErrorIs(t, err, native.ErrUnsupported)
}

func TestDecodeTextPadding(t *testing.T) {
	tests := []struct {
		pad  uint8
		raw  string
		want string
	}{
		{core.PadNullPad, "ab\x00\x00", "ab\x00\x00"},
		{core.PadNullPad, "\x00", ""},
		{core.PadNullTerm, "ab\x00cd", "ab"},
		{core.PadSpacePad, "ab  ", "ab"},
	}
	for _, tt := range tests {
		dt := core.NewFixedString(uint32(len(tt.raw)), tt.pad, core.CharsetASCII)
		assert.Equal(t, tt.want, decodeText(dt, []byte(tt.raw)))
	}
}
