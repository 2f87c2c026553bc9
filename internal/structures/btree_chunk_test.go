package structures

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5store/internal/utils"
)

func TestChunkBTree_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		grid  []uint64
		k     int
		depth int
	}{
		{"single leaf", []uint64{3, 4}, 32, 0},
		{"two levels", []uint64{5, 5}, 4, 1},
		{"four levels", []uint64{10, 10}, 2, 3},
		{"one dimension", []uint64{9}, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunkDims := make([]uint64, len(tt.grid))
			for i := range chunkDims {
				chunkDims[i] = uint64(2 + i)
			}
			total, err := utils.ElementCount(tt.grid)
			require.NoError(t, err)

			w := NewChunkBTreeWriter(chunkDims, tt.k)
			// Insert in reverse to exercise sorting.
			for i := total; i > 0; i-- {
				require.NoError(t, w.Add(ChunkRecord{
					Coords:  Unravel(i-1, tt.grid),
					Size:    uint32(100 + i),
					Address: 10000 + i*64,
				}))
			}
			require.Equal(t, int(total), w.Len())

			f := newMemFile(64)
			root, err := w.WriteToFile(f, f, utils.DefaultSizes)
			require.NoError(t, err)
			require.Equal(t, uint8(tt.depth), f.buf[root+5], "root level")

			got, err := ReadChunkBTree(f, root, utils.DefaultSizes, chunkDims)
			require.NoError(t, err)
			require.Len(t, got, int(total))
			for i, rec := range got {
				require.Equal(t, Unravel(uint64(i), tt.grid), rec.Coords)
				require.Equal(t, uint64(10000+(uint64(i)+1)*64), rec.Address)
				require.Equal(t, uint32(101+i), rec.Size)
			}
		})
	}
}

func TestChunkBTree_Empty(t *testing.T) {
	f := newMemFile(0)
	root, err := NewChunkBTreeWriter([]uint64{4}, 32).WriteToFile(f, f, utils.DefaultSizes)
	require.NoError(t, err)
	require.Equal(t, utils.UndefinedAddress, root)

	got, err := ReadChunkBTree(f, root, utils.DefaultSizes, []uint64{4})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestChunkBTree_Errors(t *testing.T) {
	w := NewChunkBTreeWriter([]uint64{4, 4}, 32)
	require.Error(t, w.Add(ChunkRecord{Coords: []uint64{1}}))

	require.NoError(t, w.Add(ChunkRecord{Coords: []uint64{0, 1}}))
	require.NoError(t, w.Add(ChunkRecord{Coords: []uint64{0, 1}}))
	f := newMemFile(0)
	_, err := w.WriteToFile(f, f, utils.DefaultSizes)
	require.Error(t, err)

	f = newMemFile(64)
	copy(f.buf[8:], "NOPE")
	_, err = ReadChunkBTree(f, 8, utils.DefaultSizes, []uint64{4, 4})
	require.ErrorIs(t, err, utils.ErrCorrupt)
}

func TestChunkBTree_NodeKeys(t *testing.T) {
	w := NewChunkBTreeWriter([]uint64{10}, 32)
	require.NoError(t, w.Add(ChunkRecord{Coords: []uint64{0}, Size: 40, Address: 800}))
	require.NoError(t, w.Add(ChunkRecord{Coords: []uint64{1}, Size: 40, FilterMask: 1, Address: 900}))

	f := newMemFile(0)
	root, err := w.WriteToFile(f, f, utils.DefaultSizes)
	require.NoError(t, err)

	c := utils.NewCursor(f.buf[root:], utils.DefaultSizes)
	c.Skip(8 + 16)
	require.Equal(t, uint32(40), c.U32())
	require.Equal(t, uint32(0), c.U32())
	require.Equal(t, uint64(0), c.U64())
	require.Equal(t, uint64(0), c.U64())
	require.Equal(t, uint64(800), c.Offset())
	c.Skip(4)
	require.Equal(t, uint32(1), c.U32())
	require.Equal(t, uint64(10), c.U64())
	c.Skip(8)
	require.Equal(t, uint64(900), c.Offset())
	// Right key of the last chunk covers it fully.
	require.Equal(t, uint32(0), c.U32())
	require.Equal(t, uint32(0), c.U32())
	require.Equal(t, uint64(20), c.U64())
}
