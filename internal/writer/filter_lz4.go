package writer

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/scigolib/h5store/internal/utils"
)

const (
	lz4DefaultBlock = 1 << 30
	lz4MaxBlock     = 0x7E000000
)

// LZ4Filter implements the registered LZ4 filter (FilterID = 32004).
//
// Layout: an 8-byte big-endian original size, a 4-byte big-endian block
// size, then each block as a 4-byte big-endian stored size followed by its
// bytes. A block whose compressed form is not smaller is stored raw.
type LZ4Filter struct {
	blockSize uint32
}

// NewLZ4Filter creates an LZ4 filter. Zero selects the default block size.
func NewLZ4Filter(blockSize uint32) *LZ4Filter {
	return &LZ4Filter{blockSize: blockSize}
}

// ID returns the HDF5 filter identifier for LZ4.
func (f *LZ4Filter) ID() FilterID {
	return FilterLZ4
}

// Name returns the filter name stored in the pipeline message.
func (f *LZ4Filter) Name() string {
	return "lz4"
}

func (f *LZ4Filter) effectiveBlock(total int) int {
	block := int(f.blockSize)
	if block <= 0 || block > lz4MaxBlock {
		block = lz4DefaultBlock
	}
	return max(1, min(block, total))
}

// Apply compresses data block by block.
func (f *LZ4Filter) Apply(data []byte) ([]byte, error) {
	block := f.effectiveBlock(len(data))
	out := make([]byte, 12, 12+len(data)/2+64)
	binary.BigEndian.PutUint64(out[0:], uint64(len(data)))
	binary.BigEndian.PutUint32(out[8:], uint32(block)) //nolint:gosec // G115: bounded by lz4MaxBlock

	var c lz4.Compressor
	scratch := utils.GetBuffer(lz4.CompressBlockBound(block))
	defer utils.ReleaseBuffer(scratch)
	for start := 0; start < len(data); start += block {
		src := data[start:min(start+block, len(data))]
		n, err := c.CompressBlock(src, scratch)
		if err != nil {
			return nil, fmt.Errorf("lz4 compression failed: %w", err)
		}
		var size [4]byte
		if n == 0 || n >= len(src) {
			binary.BigEndian.PutUint32(size[:], uint32(len(src))) //nolint:gosec // G115: bounded by block
			out = append(append(out, size[:]...), src...)
			continue
		}
		binary.BigEndian.PutUint32(size[:], uint32(n)) //nolint:gosec // G115: bounded by block
		out = append(append(out, size[:]...), scratch[:n]...)
	}
	return out, nil
}

// Remove decompresses an LZ4 filtered chunk.
func (f *LZ4Filter) Remove(data []byte) ([]byte, error) {
	if len(data) < 12 {
		return nil, utils.Corruptf("lz4 chunk of %d bytes lacks its header", len(data))
	}
	total := binary.BigEndian.Uint64(data[0:])
	block := uint64(binary.BigEndian.Uint32(data[8:]))
	if err := utils.CheckAlloc(total, "lz4 chunk"); err != nil {
		return nil, err
	}
	if block == 0 && total > 0 {
		return nil, utils.Corruptf("lz4 block size is zero")
	}

	out := make([]byte, total)
	src := data[12:]
	for pos := uint64(0); pos < total; {
		want := min(block, total-pos)
		if len(src) < 4 {
			return nil, utils.Corruptf("lz4 chunk truncated")
		}
		stored := uint64(binary.BigEndian.Uint32(src))
		src = src[4:]
		if stored > uint64(len(src)) {
			return nil, utils.Corruptf("lz4 block of %d bytes overruns chunk", stored)
		}
		dst := out[pos : pos+want]
		if stored == want {
			copy(dst, src[:stored])
		} else {
			n, err := lz4.UncompressBlock(src[:stored], dst)
			if err != nil {
				return nil, fmt.Errorf("lz4 decompression failed: %w", err)
			}
			if uint64(n) != want {
				return nil, utils.Corruptf("lz4 block decompressed to %d bytes, expected %d", n, want)
			}
		}
		src = src[stored:]
		pos += want
	}
	return out, nil
}

// Encode returns the block size as the only client value.
func (f *LZ4Filter) Encode() (flags uint16, cdValues []uint32) {
	return 0, []uint32{f.blockSize}
}
