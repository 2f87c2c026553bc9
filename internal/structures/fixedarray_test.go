package structures

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5store/internal/utils"
)

// writeFixedArray lays out an FAHD header at 64 and its FADB block at 256.
func writeFixedArray(f *memFile, filtered bool, addrs []uint64) {
	sizes := utils.DefaultSizes
	entrySize := 8
	client := uint8(0)
	if filtered {
		entrySize, client = 8+4+4, 1
	}

	hb := utils.NewBuilder(sizes, 64)
	hb.Bytes([]byte(fixedArrayHeaderSignature))
	hb.U8(0)
	hb.U8(client)
	hb.U8(uint8(entrySize))
	hb.U8(10)
	hb.Length(uint64(len(addrs)))
	hb.Offset(256)
	hb.U32(utils.Lookup3(hb.Result()))
	_ = f.WriteAtAddress(hb.Result(), 64)

	db := utils.NewBuilder(sizes, 256)
	db.Bytes([]byte(fixedArrayBlockSignature))
	db.U8(0)
	db.U8(client)
	db.Offset(64)
	for i, a := range addrs {
		db.Offset(a)
		if filtered {
			db.U32(uint32(50 + i))
			db.U32(0)
		}
	}
	db.U32(utils.Lookup3(db.Result()))
	_ = f.WriteAtAddress(db.Result(), 256)
}

func TestFixedArray_Read(t *testing.T) {
	grid := []uint64{2, 3}
	addrs := []uint64{1000, 2000, utils.UndefinedAddress, 4000, 5000, 6000}

	for _, filtered := range []bool{false, true} {
		f := newMemFile(0)
		writeFixedArray(f, filtered, addrs)

		got, err := ReadFixedArray(f, 64, utils.DefaultSizes, grid)
		require.NoError(t, err)
		require.Len(t, got, 5)
		require.Equal(t, []uint64{0, 1}, got[1].Coords)
		require.Equal(t, []uint64{1, 0}, got[2].Coords)
		require.Equal(t, uint64(4000), got[2].Address)
		if filtered {
			require.Equal(t, uint32(53), got[2].Size)
		}
	}
}

func TestFixedArray_Errors(t *testing.T) {
	f := newMemFile(0)
	writeFixedArray(f, false, []uint64{1, 2, 3})

	_, err := ReadFixedArray(f, 64, utils.DefaultSizes, []uint64{4})
	require.ErrorIs(t, err, utils.ErrCorrupt)

	f.buf[280] ^= 0xFF
	_, err = ReadFixedArray(f, 64, utils.DefaultSizes, []uint64{3})
	require.ErrorIs(t, err, utils.ErrCorrupt)
}

func TestUnravel(t *testing.T) {
	require.Equal(t, []uint64{1, 2, 3}, Unravel(1*20+2*5+3, []uint64{2, 4, 5}))
	require.Equal(t, []uint64{0}, Unravel(0, []uint64{1}))
}
