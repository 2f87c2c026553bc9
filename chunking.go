package h5store

import (
	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/writer"
)

// SmallDatasetThreshold is the stored size below which datasets are
// written unchunked and uncompressed.
const SmallDatasetThreshold = 64 << 10

// Datasets below compactThreshold live inside their object header.
const compactThreshold = 1 << 10

// maxChunkBytes is the largest chunk the 32-bit chunk size fields hold.
const maxChunkBytes = 1<<32 - 1

// chunkShape picks the default chunk of a dataset: one element along the
// leading dimensions and the full extent along the last one (rank 1 and
// 2) or last two (rank 3 and up). Oversized chunks are halved along those
// full dimensions, outermost first.
func chunkShape(dims []uint64, elemSize uint64) []uint64 {
	rank := len(dims)
	full := 1
	if rank >= 3 {
		full = 2
	}
	chunk := make([]uint64, rank)
	bytes := elemSize
	for i, d := range dims {
		chunk[i] = 1
		if i >= rank-full {
			chunk[i] = max(d, 1)
		}
		bytes *= chunk[i]
	}
	for i := rank - full; i < rank && bytes > maxChunkBytes; {
		if chunk[i] == 1 {
			i++
			continue
		}
		bytes /= chunk[i]
		chunk[i] = (chunk[i] + 1) / 2
		bytes *= chunk[i]
	}
	return chunk
}

// storedSize is the byte size of a dataset of dims.
func storedSize(dims []uint64, elemSize uint64) uint64 {
	n := elemSize
	for _, d := range dims {
		n *= d
	}
	return n
}

// layout decides the storage of a new dataset: compact or contiguous for
// scalar and small data, chunked with the requested filters otherwise.
func (t *transfer) layout(dims []uint64, elemSize uint32) (core.DataLayoutClass, []uint64, *writer.FilterPipeline) {
	size := storedSize(dims, uint64(elemSize))
	switch {
	case len(dims) > 0 && len(t.chunks) > 0:
		return core.LayoutChunked, t.chunks, t.pipeline(elemSize)
	case len(dims) == 0 || size < SmallDatasetThreshold:
		if size < compactThreshold {
			return core.LayoutCompact, nil, nil
		}
		return core.LayoutContiguous, nil, nil
	}
	return core.LayoutChunked, chunkShape(dims, uint64(elemSize)), t.pipeline(elemSize)
}
