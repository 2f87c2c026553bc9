// Package structures provides readers and writers for the HDF5 indexing
// structures that live outside object headers: version 1 B-trees for
// group entries and chunks, local heaps, symbol table nodes and the fixed
// array chunk index.
package structures

import (
	"io"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/utils"
)

const btreeSignature = "TREE"

// Version 1 B-tree node types.
const (
	BTreeGroupNode uint8 = 0
	BTreeChunkNode uint8 = 1
)

// maxBTreeDepth bounds recursion through corrupt files.
const maxBTreeDepth = 64

// Writer interface for WriteAtAddress method.
// Implemented by internal/writer.FileWriter.
type Writer interface {
	WriteAtAddress(data []byte, address uint64) error
}

// Allocator interface for space allocation.
// Implemented by internal/writer.FileWriter.
type Allocator interface {
	Allocate(size uint64) (uint64, error)
}

// nodeHeader is the fixed prefix of every version 1 B-tree node.
type nodeHeader struct {
	Type    uint8
	Level   uint8
	Entries uint16
	Left    uint64
	Right   uint64
}

func nodeHeaderSize(sizes utils.Sizes) int {
	return 8 + 2*int(sizes.Offset)
}

// readNode reads a node header plus size bytes of keys and children.
func readNode(r io.ReaderAt, address uint64, sizes utils.Sizes, wantType uint8, body func(h nodeHeader) int) (nodeHeader, *utils.Cursor, error) {
	raw, err := core.ReadBlock(r, address, nodeHeaderSize(sizes))
	if err != nil {
		return nodeHeader{}, nil, utils.WrapError("B-tree node header read failed", err)
	}
	if string(raw[:4]) != btreeSignature {
		return nodeHeader{}, nil, utils.Corruptf("invalid B-tree signature %q at %d", raw[:4], address)
	}
	c := utils.NewCursor(raw, sizes)
	c.Skip(4)
	h := nodeHeader{Type: c.U8(), Level: c.U8(), Entries: c.U16(), Left: c.Offset(), Right: c.Offset()}
	if h.Type != wantType {
		return nodeHeader{}, nil, utils.Corruptf("B-tree node at %d has type %d, expected %d", address, h.Type, wantType)
	}

	n := body(h)
	data, err := core.ReadBlock(r, address+uint64(len(raw)), n) //nolint:gosec // G115: node sizes are small
	if err != nil {
		return nodeHeader{}, nil, utils.WrapError("B-tree node read failed", err)
	}
	return h, utils.NewCursor(data, sizes), nil
}

func encodeNodeHeader(b *utils.Builder, h nodeHeader) {
	b.Bytes([]byte(btreeSignature))
	b.U8(h.Type)
	b.U8(h.Level)
	b.U16(h.Entries)
	b.Offset(h.Left)
	b.Offset(h.Right)
}
