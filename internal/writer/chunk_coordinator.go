package writer

import (
	"fmt"

	"github.com/scigolib/h5store/internal/utils"
)

// ChunkCoordinator maps a row-major dataset buffer onto its chunk grid.
//
// Every chunk is stored at its full size, edge chunks included; the part
// that falls outside the dataset is padding and is ignored when scattered
// back.
type ChunkCoordinator struct {
	datasetDims []uint64
	chunkDims   []uint64
	numChunks   []uint64
	elemSize    uint64

	dsStrides    []uint64 // byte strides of the dataset buffer
	chunkStrides []uint64 // byte strides of a full chunk
}

// NewChunkCoordinator creates a coordinator for a dataset of datasetDims
// elements split into chunks of chunkDims.
func NewChunkCoordinator(datasetDims, chunkDims []uint64, elemSize uint32) (*ChunkCoordinator, error) {
	if len(datasetDims) != len(chunkDims) {
		return nil, fmt.Errorf("dimensions mismatch: dataset has %d dims, chunk has %d dims",
			len(datasetDims), len(chunkDims))
	}
	if len(datasetDims) == 0 {
		return nil, fmt.Errorf("dataset must have at least 1 dimension")
	}
	if elemSize == 0 {
		return nil, fmt.Errorf("element size cannot be zero")
	}
	for i, dim := range chunkDims {
		if dim == 0 {
			return nil, fmt.Errorf("chunk dimension %d cannot be zero", i)
		}
	}

	cc := &ChunkCoordinator{
		datasetDims:  append([]uint64(nil), datasetDims...),
		chunkDims:    append([]uint64(nil), chunkDims...),
		numChunks:    make([]uint64, len(datasetDims)),
		elemSize:     uint64(elemSize),
		dsStrides:    make([]uint64, len(datasetDims)),
		chunkStrides: make([]uint64, len(datasetDims)),
	}
	ds, ch := cc.elemSize, cc.elemSize
	for i := len(datasetDims) - 1; i >= 0; i-- {
		cc.numChunks[i] = (datasetDims[i] + chunkDims[i] - 1) / chunkDims[i]
		cc.dsStrides[i], cc.chunkStrides[i] = ds, ch
		ds *= datasetDims[i]
		ch *= chunkDims[i]
	}
	if _, err := utils.ByteSize(chunkDims, cc.elemSize); err != nil {
		return nil, err
	}
	return cc, nil
}

// TotalChunks returns the number of chunks covering the dataset.
func (cc *ChunkCoordinator) TotalChunks() uint64 {
	total := uint64(1)
	for _, n := range cc.numChunks {
		total *= n
	}
	return total
}

// ChunkCoordinate converts a row-major chunk index into chunk coordinates.
func (cc *ChunkCoordinator) ChunkCoordinate(index uint64) []uint64 {
	coord := make([]uint64, len(cc.numChunks))
	for i := len(cc.numChunks) - 1; i >= 0; i-- {
		coord[i] = index % cc.numChunks[i]
		index /= cc.numChunks[i]
	}
	return coord
}

// ChunkIndex converts chunk coordinates into a row-major chunk index.
func (cc *ChunkCoordinator) ChunkIndex(coord []uint64) uint64 {
	var index uint64
	for i, c := range coord {
		index = index*cc.numChunks[i] + c
	}
	return index
}

// Contains reports whether coord addresses a chunk of the grid.
func (cc *ChunkCoordinator) Contains(coord []uint64) bool {
	if len(coord) != len(cc.numChunks) {
		return false
	}
	for i, c := range coord {
		if c >= cc.numChunks[i] {
			return false
		}
	}
	return true
}

// ChunkBytes returns the stored (unfiltered) size of every chunk.
func (cc *ChunkCoordinator) ChunkBytes() uint64 {
	return cc.chunkStrides[0] * cc.chunkDims[0]
}

// ValidExtent returns how many elements of the chunk at coord lie inside
// the dataset along each dimension.
func (cc *ChunkCoordinator) ValidExtent(coord []uint64) []uint64 {
	size := make([]uint64, len(coord))
	for i := range coord {
		start := coord[i] * cc.chunkDims[i]
		end := min(start+cc.chunkDims[i], cc.datasetDims[i])
		if end > start {
			size[i] = end - start
		}
	}
	return size
}

// ExtractChunkData gathers the chunk at coord from a dataset buffer into a
// new full-size chunk buffer. Padding is filled with fill, one element
// repeated, or zeros when fill is empty.
func (cc *ChunkCoordinator) ExtractChunkData(data []byte, coord []uint64, fill []byte) []byte {
	chunk := make([]byte, cc.ChunkBytes())
	if len(fill) == int(cc.elemSize) && !allZero(fill) {
		for off := 0; off < len(chunk); off += len(fill) {
			copy(chunk[off:], fill)
		}
	}
	cc.rows(coord, func(dsOff, chOff, n uint64) {
		copy(chunk[chOff:chOff+n], data[dsOff:dsOff+n])
	})
	return chunk
}

// ScatterChunkData copies the valid part of a full-size chunk into the
// dataset buffer.
func (cc *ChunkCoordinator) ScatterChunkData(chunk []byte, coord []uint64, data []byte) error {
	if uint64(len(chunk)) < cc.ChunkBytes() {
		return utils.Corruptf("chunk %v holds %d bytes, expected %d", coord, len(chunk), cc.ChunkBytes())
	}
	cc.rows(coord, func(dsOff, chOff, n uint64) {
		copy(data[dsOff:dsOff+n], chunk[chOff:chOff+n])
	})
	return nil
}

// rows calls fn for every contiguous run of the chunk's valid region with
// the byte offsets of that run in the dataset and in the chunk.
func (cc *ChunkCoordinator) rows(coord []uint64, fn func(dsOff, chOff, n uint64)) {
	rank := len(cc.chunkDims)
	ext := cc.ValidExtent(coord)
	for _, e := range ext {
		if e == 0 {
			return
		}
	}
	rowLen := ext[rank-1] * cc.elemSize
	idx := make([]uint64, rank)
	for {
		var dsOff, chOff uint64
		for d := 0; d < rank; d++ {
			dsOff += (coord[d]*cc.chunkDims[d] + idx[d]) * cc.dsStrides[d]
			chOff += idx[d] * cc.chunkStrides[d]
		}
		fn(dsOff, chOff, rowLen)

		d := rank - 2
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < ext[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

// DatasetDims returns the dataset dimensions.
func (cc *ChunkCoordinator) DatasetDims() []uint64 {
	return append([]uint64(nil), cc.datasetDims...)
}

// ChunkDims returns the chunk dimensions.
func (cc *ChunkCoordinator) ChunkDims() []uint64 {
	return append([]uint64(nil), cc.chunkDims...)
}

// NumChunks returns the number of chunks along each dimension.
func (cc *ChunkCoordinator) NumChunks() []uint64 {
	return append([]uint64(nil), cc.numChunks...)
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
