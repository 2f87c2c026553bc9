package structures

import (
	"fmt"
	"io"
	"sort"

	"github.com/scigolib/h5store/internal/utils"
)

// ChunkRecord locates one stored chunk of a chunked dataset.
type ChunkRecord struct {
	Coords     []uint64 // scaled chunk coordinates
	Size       uint32   // stored (filtered) size in bytes
	FilterMask uint32   // bit i set: filter i was skipped
	Address    uint64
}

// chunkKeySize is the encoded key size for a dataset of the given rank:
// chunk size, filter mask and rank+1 eight-byte offsets.
func chunkKeySize(rank int) int {
	return 8 + 8*(rank+1)
}

// ReadChunkBTree walks a raw data chunk B-tree (type 1) and returns every
// indexed chunk, scaled by chunkDims.
func ReadChunkBTree(r io.ReaderAt, address uint64, sizes utils.Sizes, chunkDims []uint64) ([]ChunkRecord, error) {
	if utils.IsUndefined(address, sizes.Offset) {
		return nil, nil
	}
	for _, d := range chunkDims {
		if d == 0 {
			return nil, utils.Corruptf("zero chunk dimension")
		}
	}
	var out []ChunkRecord
	if err := walkChunkNode(r, address, sizes, chunkDims, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkChunkNode(r io.ReaderAt, address uint64, sizes utils.Sizes, chunkDims []uint64, depth int, out *[]ChunkRecord) error {
	if depth > maxBTreeDepth {
		return utils.Corruptf("chunk B-tree deeper than %d levels", maxBTreeDepth)
	}
	rank := len(chunkDims)
	keySize := chunkKeySize(rank)
	h, c, err := readNode(r, address, sizes, BTreeChunkNode, func(h nodeHeader) int {
		return int(h.Entries)*(keySize+int(sizes.Offset)) + keySize
	})
	if err != nil {
		return err
	}

	for i := 0; i < int(h.Entries); i++ {
		rec := ChunkRecord{Size: c.U32(), FilterMask: c.U32(), Coords: make([]uint64, rank)}
		for d := range rec.Coords {
			off := c.U64()
			if off%chunkDims[d] != 0 {
				return utils.Corruptf("chunk offset %d not aligned to chunk size %d", off, chunkDims[d])
			}
			rec.Coords[d] = off / chunkDims[d]
		}
		c.Skip(8)
		rec.Address = c.Offset()
		if err := c.Err(); err != nil {
			return err
		}

		if h.Level > 0 {
			if err := walkChunkNode(r, rec.Address, sizes, chunkDims, depth+1, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, rec)
	}
	return nil
}

// ChunkBTreeWriter builds a complete chunk B-tree in one pass.
//
// Records are sorted in row-major order and packed bottom-up into nodes of
// 2K entries. Every node is allocated at its full size, as libhdf5 expects
// when it later inserts into the tree.
type ChunkBTreeWriter struct {
	chunkDims []uint64
	k         int
	records   []ChunkRecord
}

// NewChunkBTreeWriter creates a writer for chunks of chunkDims elements and
// nodes of order k.
func NewChunkBTreeWriter(chunkDims []uint64, k int) *ChunkBTreeWriter {
	if k <= 0 {
		k = 32
	}
	return &ChunkBTreeWriter{chunkDims: append([]uint64(nil), chunkDims...), k: k}
}

// Add records one stored chunk.
func (w *ChunkBTreeWriter) Add(rec ChunkRecord) error {
	if len(rec.Coords) != len(w.chunkDims) {
		return fmt.Errorf("coordinate dimensionality mismatch: expected %d, got %d", len(w.chunkDims), len(rec.Coords))
	}
	rec.Coords = append([]uint64(nil), rec.Coords...)
	w.records = append(w.records, rec)
	return nil
}

// Len returns the number of chunks added so far.
func (w *ChunkBTreeWriter) Len() int { return len(w.records) }

// nodeRef is a written node as seen by its parent.
type nodeRef struct {
	first, last ChunkRecord
	address     uint64
}

// WriteToFile writes the tree and returns its root address, or the
// undefined address when no chunk was added.
func (w *ChunkBTreeWriter) WriteToFile(writer Writer, alloc Allocator, sizes utils.Sizes) (uint64, error) {
	if len(w.records) == 0 {
		return utils.UndefinedAddress, nil
	}
	sort.Slice(w.records, func(i, j int) bool {
		return compareChunkCoords(w.records[i].Coords, w.records[j].Coords) < 0
	})
	for i := 1; i < len(w.records); i++ {
		if compareChunkCoords(w.records[i-1].Coords, w.records[i].Coords) == 0 {
			return 0, fmt.Errorf("chunk %v added twice", w.records[i].Coords)
		}
	}

	level := make([]nodeRef, len(w.records))
	for i, rec := range w.records {
		level[i] = nodeRef{first: rec, last: w.rightKey(rec), address: rec.Address}
	}
	for depth := uint8(0); ; depth++ {
		next, err := w.writeLevel(writer, alloc, sizes, depth, level)
		if err != nil {
			return 0, err
		}
		if len(next) == 1 {
			return next[0].address, nil
		}
		level = next
	}
}

// rightKey bounds a chunk from above: its offset plus one chunk.
func (w *ChunkBTreeWriter) rightKey(rec ChunkRecord) ChunkRecord {
	coords := make([]uint64, len(rec.Coords))
	for i, c := range rec.Coords {
		coords[i] = c + 1
	}
	return ChunkRecord{Coords: coords}
}

func (w *ChunkBTreeWriter) nodeSize(sizes utils.Sizes) int {
	keySize := chunkKeySize(len(w.chunkDims))
	return nodeHeaderSize(sizes) + (2*w.k+1)*keySize + 2*w.k*int(sizes.Offset)
}

func (w *ChunkBTreeWriter) writeLevel(writer Writer, alloc Allocator, sizes utils.Sizes, depth uint8, children []nodeRef) ([]nodeRef, error) {
	fanout := 2 * w.k
	count := (len(children) + fanout - 1) / fanout
	size := w.nodeSize(sizes)

	addrs := make([]uint64, count)
	for i := range addrs {
		addr, err := alloc.Allocate(uint64(size)) //nolint:gosec // G115: node sizes are small
		if err != nil {
			return nil, fmt.Errorf("failed to allocate space for B-tree: %w", err)
		}
		addrs[i] = addr
	}

	parents := make([]nodeRef, count)
	for i := range addrs {
		group := children[i*fanout : min((i+1)*fanout, len(children))]
		h := nodeHeader{
			Type:    BTreeChunkNode,
			Level:   depth,
			Entries: uint16(len(group)), //nolint:gosec // G115: bounded by fanout
			Left:    utils.UndefinedAddress,
			Right:   utils.UndefinedAddress,
		}
		if i > 0 {
			h.Left = addrs[i-1]
		}
		if i < count-1 {
			h.Right = addrs[i+1]
		}

		b := utils.NewBuilder(sizes, size)
		encodeNodeHeader(b, h)
		for _, child := range group {
			w.encodeKey(b, child.first)
			b.Offset(child.address)
		}
		w.encodeKey(b, group[len(group)-1].last)
		b.Zeros(size - b.Len())
		if err := writer.WriteAtAddress(b.Result(), addrs[i]); err != nil {
			return nil, fmt.Errorf("failed to write B-tree at address %d: %w", addrs[i], err)
		}
		parents[i] = nodeRef{first: group[0].first, last: group[len(group)-1].last, address: addrs[i]}
	}
	return parents, nil
}

func (w *ChunkBTreeWriter) encodeKey(b *utils.Builder, rec ChunkRecord) {
	b.U32(rec.Size)
	b.U32(rec.FilterMask)
	for i, c := range rec.Coords {
		b.U64(c * w.chunkDims[i])
	}
	b.U64(0)
}

// compareChunkCoords compares coordinates in row-major order.
func compareChunkCoords(a, b []uint64) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] < b[i] {
			return -1
		} else if a[i] > b[i] {
			return 1
		}
	}
	return 0
}
