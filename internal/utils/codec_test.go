package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderCursor_RoundTrip(t *testing.T) {
	for _, sizes := range []Sizes{{Offset: 8, Length: 8}, {Offset: 4, Length: 4}, {Offset: 4, Length: 8}} {
		t.Run(sizes.String(), func(t *testing.T) {
			b := NewBuilder(sizes, 0)
			b.U8(0x11)
			b.U16(0x2233)
			b.U32(0x44556677)
			b.U64(0x8899aabbccddeeff)
			b.Offset(0x1000)
			b.Offset(UndefinedAddress)
			b.Length(42)
			b.Bytes([]byte("abc"))
			b.Zeros(2)

			c := NewCursor(b.Result(), sizes)
			require.Equal(t, uint8(0x11), c.U8())
			require.Equal(t, uint16(0x2233), c.U16())
			require.Equal(t, uint32(0x44556677), c.U32())
			require.Equal(t, uint64(0x8899aabbccddeeff), c.U64())
			require.Equal(t, uint64(0x1000), c.Offset())
			require.Equal(t, UndefinedAddress, c.Offset())
			require.Equal(t, uint64(42), c.Length())
			require.Equal(t, []byte("abc"), c.Bytes(3))
			c.Skip(2)
			require.NoError(t, c.Err())
			require.Zero(t, c.Remaining())
		})
	}
}

func TestCursor_TruncationLatches(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3}, DefaultSizes)
	require.Equal(t, uint16(0x0201), c.U16())
	require.Zero(t, c.U32())
	require.ErrorIs(t, c.Err(), ErrCorrupt)
	require.Zero(t, c.U8(), "reads after an error return zero")
}

func TestBuilder_Patch(t *testing.T) {
	b := NewBuilder(DefaultSizes, 8)
	b.U32(0)
	b.U32(7)
	b.Patch(0, []byte{9, 9})
	require.Equal(t, []byte{9, 9, 0, 0, 7, 0, 0, 0}, b.Result())
	require.Equal(t, 8, b.Len())
}

func TestSizes_Validate(t *testing.T) {
	require.NoError(t, DefaultSizes.Validate())
	require.NoError(t, Sizes{Offset: 4, Length: 2}.Validate())
	require.ErrorIs(t, Sizes{Offset: 3, Length: 8}.Validate(), ErrCorrupt)
}

func TestIsUndefined(t *testing.T) {
	require.True(t, IsUndefined(UndefinedAddress, 8))
	require.True(t, IsUndefined(0xFFFFFFFF, 4))
	require.False(t, IsUndefined(0xFFFFFFFF, 8))
	require.False(t, IsUndefined(0, 4))
	require.True(t, IsUndefined(UndefinedAddress, 4))
}
