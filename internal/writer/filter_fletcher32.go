package writer

import (
	"encoding/binary"
	"fmt"

	"github.com/scigolib/h5store/internal/utils"
)

// Fletcher32Filter implements the Fletcher-32 checksum filter (FilterID = 3).
//
// Apply appends a 4-byte checksum; Remove verifies and strips it. The sum
// runs over big-endian 16-bit words, matching libhdf5.
type Fletcher32Filter struct{}

// NewFletcher32Filter creates a Fletcher-32 checksum filter.
func NewFletcher32Filter() *Fletcher32Filter {
	return &Fletcher32Filter{}
}

// ID returns the HDF5 filter identifier for Fletcher-32.
func (f *Fletcher32Filter) ID() FilterID {
	return FilterFletcher32
}

// Name returns the HDF5 filter name.
func (f *Fletcher32Filter) Name() string {
	return "fletcher32"
}

// Apply appends the checksum.
func (f *Fletcher32Filter) Apply(data []byte) ([]byte, error) {
	out := make([]byte, len(data)+4)
	copy(out, data)
	binary.LittleEndian.PutUint32(out[len(data):], fletcher32(data))
	return out, nil
}

// Remove verifies and strips the checksum. Checksums written byte-swapped
// by old libhdf5 releases are accepted too.
func (f *Fletcher32Filter) Remove(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, utils.Corruptf("fletcher32 chunk of %d bytes has no checksum", len(data))
	}
	body := data[:len(data)-4]
	stored := binary.LittleEndian.Uint32(data[len(data)-4:])
	sum := fletcher32(body)
	if stored != sum && stored != reverseBytes(sum) {
		return nil, fmt.Errorf("%w: fletcher32 mismatch (stored %08x, computed %08x)", utils.ErrCorrupt, stored, sum)
	}
	return body, nil
}

// Encode returns no client values.
func (f *Fletcher32Filter) Encode() (flags uint16, cdValues []uint32) {
	return 0, nil
}

// fletcher32 computes the HDF5 variant of the Fletcher-32 checksum.
func fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32
	words := len(data) / 2
	p := 0
	for words > 0 {
		n := min(words, 360)
		words -= n
		for ; n > 0; n-- {
			sum1 += uint32(data[p])<<8 | uint32(data[p+1])
			sum2 += sum1
			p += 2
		}
		sum1 = sum1&0xffff + sum1>>16
		sum2 = sum2&0xffff + sum2>>16
	}
	if len(data)%2 == 1 {
		sum1 += uint32(data[p]) << 8
		sum2 += sum1
		sum1 = sum1&0xffff + sum1>>16
		sum2 = sum2&0xffff + sum2>>16
	}
	sum1 = sum1&0xffff + sum1>>16
	sum2 = sum2&0xffff + sum2>>16
	return sum2<<16 | sum1
}

func reverseBytes(v uint32) uint32 {
	return v>>24 | (v>>8)&0xff00 | (v<<8)&0xff0000 | v<<24
}
