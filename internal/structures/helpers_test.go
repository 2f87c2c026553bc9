package structures

import (
	"io"
)

// memFile is an in-memory Writer, Allocator and io.ReaderAt.
type memFile struct {
	buf  []byte
	next uint64
}

func newMemFile(start uint64) *memFile {
	return &memFile{buf: make([]byte, start), next: start}
}

func (m *memFile) Allocate(size uint64) (uint64, error) {
	addr := m.next
	m.next += (size + 7) &^ 7
	return addr, nil
}

func (m *memFile) WriteAtAddress(data []byte, address uint64) error {
	end := int(address) + len(data)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[address:], data)
	return nil
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
