package structures

import (
	"io"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/utils"
)

const symbolNodeSignature = "SNOD"

// Cache type constants for symbol table entries.
const (
	CacheTypeNone        uint32 = 0
	CacheTypeSymbolTable uint32 = 1
	CacheTypeSoftLink    uint32 = 2
)

// SymbolTableEntry represents a single entry in a symbol table linking to an object.
type SymbolTableEntry struct {
	NameOffset    uint64
	ObjectAddress uint64
	CacheType     uint32
	Scratch       [16]byte
}

// EntrySize returns the encoded size of one entry.
func EntrySize(sizes utils.Sizes) int {
	return 2*int(sizes.Offset) + 24
}

// SoftLinkOffset returns the heap offset of a soft link value.
func (e *SymbolTableEntry) SoftLinkOffset() uint64 {
	return utils.DecodeUint(e.Scratch[:4], 4)
}

func decodeEntry(c *utils.Cursor) SymbolTableEntry {
	e := SymbolTableEntry{NameOffset: c.Offset(), ObjectAddress: c.Offset(), CacheType: c.U32()}
	c.Skip(4)
	copy(e.Scratch[:], c.Bytes(16))
	return e
}

func encodeEntry(b *utils.Builder, e SymbolTableEntry) {
	b.Offset(e.NameOffset)
	b.Offset(e.ObjectAddress)
	b.U32(e.CacheType)
	b.U32(0)
	b.Bytes(e.Scratch[:])
}

// ParseSymbolTableNode reads the entries of a symbol table node (SNOD).
func ParseSymbolTableNode(r io.ReaderAt, address uint64, sizes utils.Sizes) ([]SymbolTableEntry, error) {
	header, err := core.ReadBlock(r, address, 8)
	if err != nil {
		return nil, utils.WrapError("SNOD header read failed", err)
	}
	if string(header[:4]) != symbolNodeSignature {
		return nil, utils.Corruptf("invalid SNOD signature %q at %d", header[:4], address)
	}
	if header[4] != 1 {
		return nil, utils.Unsupportedf("SNOD version %d", header[4])
	}
	n := int(utils.DecodeUint(header[6:8], 2))
	if n == 0 {
		return nil, nil
	}

	data, err := core.ReadBlock(r, address+8, n*EntrySize(sizes))
	if err != nil {
		return nil, utils.WrapError("SNOD entries read failed", err)
	}
	c := utils.NewCursor(data, sizes)
	entries := make([]SymbolTableEntry, n)
	for i := range entries {
		entries[i] = decodeEntry(c)
	}
	return entries, c.Err()
}

// EncodeSymbolTableNode serializes a node padded to capacity entries.
func EncodeSymbolTableNode(entries []SymbolTableEntry, capacity int, sizes utils.Sizes) []byte {
	capacity = max(capacity, len(entries))
	b := utils.NewBuilder(sizes, 8+capacity*EntrySize(sizes))
	b.Bytes([]byte(symbolNodeSignature))
	b.U8(1)
	b.U8(0)
	b.U16(uint16(len(entries))) //nolint:gosec // G115: bounded by 2*leaf K
	for _, e := range entries {
		encodeEntry(b, e)
	}
	b.Zeros((capacity - len(entries)) * EntrySize(sizes))
	return b.Result()
}
