package structures

import (
	"io"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/utils"
)

const localHeapSignature = "HEAP"

// LocalHeap represents an HDF5 local heap for storing short strings.
// Used by symbol tables to store object names and soft link values.
type LocalHeap struct {
	Data        []byte
	FreeList    uint64
	DataAddress uint64
}

// LoadLocalHeap loads a local heap from the specified file address.
func LoadLocalHeap(r io.ReaderAt, address uint64, sizes utils.Sizes) (*LocalHeap, error) {
	headerSize := 8 + 2*int(sizes.Length) + int(sizes.Offset)
	raw, err := core.ReadBlock(r, address, headerSize)
	if err != nil {
		return nil, utils.WrapError("local heap header read failed", err)
	}
	if string(raw[:4]) != localHeapSignature {
		return nil, utils.Corruptf("invalid local heap signature at %d", address)
	}

	c := utils.NewCursor(raw, sizes)
	c.Skip(8)
	size := c.Length()
	h := &LocalHeap{FreeList: c.Length(), DataAddress: c.Offset()}
	if err := utils.CheckAlloc(size, "local heap"); err != nil {
		return nil, err
	}
	if size > 0 {
		h.Data, err = core.ReadBlock(r, h.DataAddress, int(size)) //nolint:gosec // G115: bounded by CheckAlloc
		if err != nil {
			return nil, utils.WrapError("local heap data read failed", err)
		}
	}
	return h, nil
}

// GetString retrieves a null-terminated string from the heap at the given offset.
func (h *LocalHeap) GetString(offset uint64) (string, error) {
	if offset >= uint64(len(h.Data)) {
		return "", utils.Corruptf("local heap offset %d beyond %d bytes", offset, len(h.Data))
	}
	for end := offset; end < uint64(len(h.Data)); end++ {
		if h.Data[end] == 0 {
			return string(h.Data[offset:end]), nil
		}
	}
	return "", utils.Corruptf("local heap string at %d not null-terminated", offset)
}

// NewLocalHeap creates an empty heap. Offset 0 holds the empty string, as
// libhdf5 reserves it for the root entry name.
func NewLocalHeap() *LocalHeap {
	return &LocalHeap{Data: []byte{0}, FreeList: utils.UndefinedAddress}
}

// AddString appends s and returns its offset. Strings are 8-byte aligned.
func (h *LocalHeap) AddString(s string) uint64 {
	if rem := len(h.Data) % 8; rem != 0 {
		h.Data = append(h.Data, make([]byte, 8-rem)...)
	}
	offset := uint64(len(h.Data))
	h.Data = append(h.Data, s...)
	h.Data = append(h.Data, 0)
	return offset
}

// WriteTo allocates and writes the heap header followed by its data segment.
func (h *LocalHeap) WriteTo(w Writer, a Allocator, sizes utils.Sizes) (uint64, error) {
	if rem := len(h.Data) % 8; rem != 0 {
		h.Data = append(h.Data, make([]byte, 8-rem)...)
	}
	headerSize := 8 + 2*int(sizes.Length) + int(sizes.Offset)
	total := headerSize + len(h.Data)
	addr, err := a.Allocate(uint64(total)) //nolint:gosec // G115: heap sizes are small
	if err != nil {
		return 0, utils.WrapError("local heap allocation failed", err)
	}
	h.DataAddress = addr + uint64(headerSize) //nolint:gosec // G115: small

	b := utils.NewBuilder(sizes, total)
	b.Bytes([]byte(localHeapSignature))
	b.Zeros(4)
	b.Length(uint64(len(h.Data)))
	b.Length(h.FreeList)
	b.Offset(h.DataAddress)
	b.Bytes(h.Data)
	if err := w.WriteAtAddress(b.Result(), addr); err != nil {
		return 0, utils.WrapError("local heap write failed", err)
	}
	return addr, nil
}
