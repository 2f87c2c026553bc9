package utils

import (
	"encoding/binary"
	"fmt"
)

// UndefinedAddress is the all-ones address HDF5 uses for "not allocated".
const UndefinedAddress = ^uint64(0)

// Sizes carries the per-file widths of addresses and lengths (superblock
// "size of offsets" and "size of lengths").
type Sizes struct {
	Offset uint8
	Length uint8
}

// DefaultSizes is what files created by this engine use.
var DefaultSizes = Sizes{Offset: 8, Length: 8}

// Validate rejects widths HDF5 does not define.
func (s Sizes) Validate() error {
	for _, n := range []uint8{s.Offset, s.Length} {
		switch n {
		case 2, 4, 8:
		default:
			return Corruptf("invalid offset/length width %d", n)
		}
	}
	return nil
}

// IsUndefined reports whether addr is the undefined address for width n,
// either raw or already widened to UndefinedAddress by Cursor.Offset.
func IsUndefined(addr uint64, n uint8) bool {
	if addr == UndefinedAddress {
		return true
	}
	if n >= 8 {
		return false
	}
	return addr == (uint64(1)<<(8*uint(n)))-1
}

// DecodeUint reads an n-byte little-endian unsigned value.
func DecodeUint(b []byte, n int) uint64 {
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// EncodeUint writes v as an n-byte little-endian value.
func EncodeUint(b []byte, v uint64, n int) {
	for i := 0; i < n; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// Cursor decodes little-endian fields from an in-memory message body.
// The first short read latches an error; later reads return zero values.
type Cursor struct {
	buf   []byte
	pos   int
	sizes Sizes
	err   error
}

// NewCursor creates a cursor over buf.
func NewCursor(buf []byte, sizes Sizes) *Cursor {
	return &Cursor{buf: buf, sizes: sizes}
}

func (c *Cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.pos+n > len(c.buf) {
		c.err = Corruptf("truncated field: need %d bytes at offset %d of %d", n, c.pos, len(c.buf))
		return nil
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b
}

// U8 reads one byte.
func (c *Cursor) U8() uint8 {
	if b := c.take(1); b != nil {
		return b[0]
	}
	return 0
}

// U16 reads a little-endian uint16.
func (c *Cursor) U16() uint16 {
	if b := c.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

// U32 reads a little-endian uint32.
func (c *Cursor) U32() uint32 {
	if b := c.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

// U64 reads a little-endian uint64.
func (c *Cursor) U64() uint64 {
	if b := c.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// Uint reads an n-byte unsigned value.
func (c *Cursor) Uint(n int) uint64 {
	if b := c.take(n); b != nil {
		return DecodeUint(b, n)
	}
	return 0
}

// Offset reads a file address, mapping the width-specific undefined value
// to UndefinedAddress.
func (c *Cursor) Offset() uint64 {
	v := c.Uint(int(c.sizes.Offset))
	if c.err == nil && IsUndefined(v, c.sizes.Offset) {
		return UndefinedAddress
	}
	return v
}

// Length reads a file length field.
func (c *Cursor) Length() uint64 {
	return c.Uint(int(c.sizes.Length))
}

// Bytes returns the next n bytes without copying.
func (c *Cursor) Bytes(n int) []byte {
	return c.take(n)
}

// Skip advances past n bytes.
func (c *Cursor) Skip(n int) {
	c.take(n)
}

// Pos returns the number of bytes consumed.
func (c *Cursor) Pos() int { return c.pos }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Sizes returns the widths the cursor decodes addresses and lengths with.
func (c *Cursor) Sizes() Sizes { return c.sizes }

// Err returns the first decoding error.
func (c *Cursor) Err() error { return c.err }

// Builder appends little-endian fields to a growing buffer.
type Builder struct {
	buf   []byte
	sizes Sizes
}

// NewBuilder creates a builder with an initial capacity hint.
func NewBuilder(sizes Sizes, capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity), sizes: sizes}
}

// U8 appends one byte.
func (b *Builder) U8(v uint8) { b.buf = append(b.buf, v) }

// U16 appends a little-endian uint16.
func (b *Builder) U16(v uint16) { b.buf = binary.LittleEndian.AppendUint16(b.buf, v) }

// U32 appends a little-endian uint32.
func (b *Builder) U32(v uint32) { b.buf = binary.LittleEndian.AppendUint32(b.buf, v) }

// U64 appends a little-endian uint64.
func (b *Builder) U64(v uint64) { b.buf = binary.LittleEndian.AppendUint64(b.buf, v) }

// Uint appends an n-byte value.
func (b *Builder) Uint(v uint64, n int) {
	for i := 0; i < n; i++ {
		b.buf = append(b.buf, byte(v>>(8*uint(i))))
	}
}

// Offset appends a file address at the configured width.
func (b *Builder) Offset(v uint64) { b.Uint(v, int(b.sizes.Offset)) }

// Length appends a length at the configured width.
func (b *Builder) Length(v uint64) { b.Uint(v, int(b.sizes.Length)) }

// Bytes appends raw bytes.
func (b *Builder) Bytes(p []byte) { b.buf = append(b.buf, p...) }

// Zeros appends n zero bytes.
func (b *Builder) Zeros(n int) {
	for i := 0; i < n; i++ {
		b.buf = append(b.buf, 0)
	}
}

// Len returns the number of bytes written so far.
func (b *Builder) Len() int { return len(b.buf) }

// Sizes returns the widths addresses and lengths are encoded with.
func (b *Builder) Sizes() Sizes { return b.sizes }

// Patch overwrites already written bytes at off.
func (b *Builder) Patch(off int, p []byte) { copy(b.buf[off:], p) }

// Result returns the encoded bytes.
func (b *Builder) Result() []byte { return b.buf }

// String renders widths for diagnostics.
func (s Sizes) String() string {
	return fmt.Sprintf("offsets=%d lengths=%d", s.Offset, s.Length)
}
