// Package writer provides HDF5 file writing infrastructure: end-of-file
// space allocation, the chunk filter pipeline with its codecs, and the
// chunk coordinator that moves data between datasets and chunks.
//
// Space is never reclaimed. Objects that are rewritten move to the end of
// the file and their old space is left behind, the same trade-off libhdf5
// makes without a free-space manager.
package writer

import "fmt"

// allocAlign is the alignment of every allocation.
const allocAlign = 8

// Allocator hands out space at the end of the file.
type Allocator struct {
	nextOffset uint64
	allocated  uint64
	blocks     int
}

// NewAllocator creates an allocator whose first block starts at (or after)
// initialOffset.
func NewAllocator(initialOffset uint64) *Allocator {
	return &Allocator{nextOffset: initialOffset}
}

// Allocate reserves size bytes at an 8-byte aligned end-of-file address.
func (a *Allocator) Allocate(size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("cannot allocate zero bytes")
	}
	addr := (a.nextOffset + allocAlign - 1) &^ (allocAlign - 1)
	end := addr + size
	if end < addr {
		return 0, fmt.Errorf("allocation of %d bytes overflows the address space", size)
	}
	a.nextOffset = end
	a.allocated += size
	a.blocks++
	return addr, nil
}

// EndOfFile returns the address just past the last allocation.
func (a *Allocator) EndOfFile() uint64 {
	return a.nextOffset
}

// Stats reports how many blocks and bytes were allocated so far.
func (a *Allocator) Stats() (blocks int, bytes uint64) {
	return a.blocks, a.allocated
}
