package writer

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrClosed reports use of a FileWriter after Detach.
var ErrClosed = errors.New("file writer is detached")

// FileWriter addresses a container file the way its metadata does:
// relative to the superblock base, so a user block in front of the
// superblock is skipped transparently.
//
// WriteAt and ReadAt may run concurrently on distinct regions. Allocate
// and Append must be serialized by the caller.
type FileWriter struct {
	file      *os.File
	base      uint64
	allocator *Allocator
}

// NewFileWriter wraps file. base is the absolute offset of address zero
// and eof the first free address.
func NewFileWriter(file *os.File, base, eof uint64) *FileWriter {
	return &FileWriter{file: file, base: base, allocator: NewAllocator(eof)}
}

func (w *FileWriter) abs(addr int64) int64 {
	return addr + int64(w.base) //nolint:gosec // G115: base is a small user block size
}

// Allocate reserves size bytes at the end of the file.
func (w *FileWriter) Allocate(size uint64) (uint64, error) {
	if w.file == nil {
		return 0, ErrClosed
	}
	return w.allocator.Allocate(size)
}

// WriteAt writes data at a relative address.
func (w *FileWriter) WriteAt(data []byte, addr int64) (int, error) {
	if w.file == nil {
		return 0, ErrClosed
	}
	if len(data) == 0 {
		return 0, nil
	}
	n, err := w.file.WriteAt(data, w.abs(addr))
	if err != nil {
		return n, fmt.Errorf("writing %d bytes at address %d: %w", len(data), addr, err)
	}
	return n, nil
}

// WriteAtAddress writes data at addr.
func (w *FileWriter) WriteAtAddress(data []byte, addr uint64) error {
	_, err := w.WriteAt(data, int64(addr)) //nolint:gosec // G115: addresses fit in int64
	return err
}

// ReadAt reads at a relative address.
func (w *FileWriter) ReadAt(buf []byte, addr int64) (int, error) {
	if w.file == nil {
		return 0, ErrClosed
	}
	return w.file.ReadAt(buf, w.abs(addr))
}

// Append allocates room for data at the end of the file, writes it there
// and returns its address.
func (w *FileWriter) Append(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, errors.New("appending an empty block")
	}
	addr, err := w.Allocate(uint64(len(data)))
	if err != nil {
		return 0, err
	}
	return addr, w.WriteAtAddress(data, addr)
}

// EndOfFile returns the first unallocated address.
func (w *FileWriter) EndOfFile() uint64 {
	return w.allocator.EndOfFile()
}

// Extend grows the file over every allocated address so that reserved
// but unwritten space reads back as zeros.
func (w *FileWriter) Extend() error {
	if w.file == nil {
		return ErrClosed
	}
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	want := w.abs(int64(w.EndOfFile())) //nolint:gosec // G115: addresses fit in int64
	if info.Size() >= want {
		return nil
	}
	return w.file.Truncate(want)
}

// Flush syncs written data to stable storage.
func (w *FileWriter) Flush() error {
	if w.file == nil {
		return ErrClosed
	}
	return w.file.Sync()
}

// Detach forgets the file without closing it. Later calls fail with
// ErrClosed.
func (w *FileWriter) Detach() {
	w.file = nil
}

var (
	_ io.ReaderAt = (*FileWriter)(nil)
	_ io.WriterAt = (*FileWriter)(nil)
)
