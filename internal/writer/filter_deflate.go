package writer

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/scigolib/h5store/internal/utils"
)

// DeflateFilter implements zlib compression (FilterID = 1).
// HDF5 stores the raw zlib stream, header and Adler-32 trailer included.
//
// Compression levels:
//
//	0 = stored blocks only
//	1 = fastest compression, larger files
//	6 = balanced (default)
//	9 = best compression, slower
type DeflateFilter struct {
	level int
}

// zlibWriters pools writers per compression level.
var zlibWriters [10]sync.Pool

// NewDeflateFilter creates a deflate filter. Levels outside 0..9 become 6.
func NewDeflateFilter(level int) *DeflateFilter {
	if level < 0 || level > 9 {
		level = 6
	}
	return &DeflateFilter{level: level}
}

// ID returns the HDF5 filter identifier for deflate.
func (f *DeflateFilter) ID() FilterID {
	return FilterDeflate
}

// Name returns the HDF5 filter name.
func (f *DeflateFilter) Name() string {
	return "deflate"
}

// Level returns the compression level.
func (f *DeflateFilter) Level() int { return f.level }

// Apply compresses data.
func (f *DeflateFilter) Apply(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data)/2 + 64)

	pool := &zlibWriters[f.level]
	w, _ := pool.Get().(*zlib.Writer)
	if w == nil {
		var err error
		if w, err = zlib.NewWriterLevel(&buf, f.level); err != nil {
			return nil, fmt.Errorf("zlib writer creation failed: %w", err)
		}
	} else {
		w.Reset(&buf)
	}
	defer pool.Put(w)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("zlib compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib close failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Remove decompresses a zlib stream.
func (f *DeflateFilter) Remove(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib reader creation failed: %w", err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(io.LimitReader(r, utils.MaxInMemory))
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}
	return out, nil
}

// Encode returns the compression level as the only client value.
func (f *DeflateFilter) Encode() (flags uint16, cdValues []uint32) {
	return 0, []uint32{uint32(f.level)} //nolint:gosec // G115: level is 0..9
}
