package core

import (
	"fmt"

	"github.com/scigolib/h5store/internal/utils"
)

// LinkType identifies what a link points at.
type LinkType uint8

// Link types defined by the link message.
const (
	LinkHard     LinkType = 0
	LinkSoft     LinkType = 1
	LinkExternal LinkType = 64
)

// String returns the link type name.
func (t LinkType) String() string {
	switch t {
	case LinkHard:
		return "hard"
	case LinkSoft:
		return "soft"
	case LinkExternal:
		return "external"
	}
	return fmt.Sprintf("link-%d", uint8(t))
}

// LinkMessage represents a link stored in a group object header.
type LinkMessage struct {
	Name          string
	Type          LinkType
	Charset       uint8
	CreationOrder int64
	HasOrder      bool

	// Address is the object header a hard link points at.
	Address uint64
	// Target holds the soft link path or the raw external link info.
	Target []byte
}

// ParseLinkMessage parses a link message (type 6).
func ParseLinkMessage(data []byte, sizes utils.Sizes) (*LinkMessage, error) {
	c := utils.NewCursor(data, sizes)
	if v := c.U8(); v != 1 {
		return nil, utils.Unsupportedf("link message version %d", v)
	}
	flags := c.U8()
	l := &LinkMessage{Type: LinkHard}
	if flags&0x08 != 0 {
		l.Type = LinkType(c.U8())
	}
	if flags&0x04 != 0 {
		l.CreationOrder = int64(c.U64()) //nolint:gosec // G115: creation order is a signed 64-bit counter
		l.HasOrder = true
	}
	if flags&0x10 != 0 {
		l.Charset = c.U8()
	}
	nameLen := int(c.Uint(1 << (flags & 0x03)))
	l.Name = string(c.Bytes(nameLen))

	switch l.Type {
	case LinkHard:
		l.Address = c.Offset()
	case LinkSoft, LinkExternal:
		n := int(c.U16())
		l.Target = append([]byte(nil), c.Bytes(n)...)
	default:
		l.Target = append([]byte(nil), c.Bytes(c.Remaining())...)
	}
	if err := c.Err(); err != nil {
		return nil, utils.WrapError("link message decode failed", err)
	}
	if l.Name == "" {
		return nil, utils.Corruptf("link message with empty name")
	}
	return l, nil
}

// Encode serializes the link message.
func (l *LinkMessage) Encode(sizes utils.Sizes) []byte {
	var flags uint8
	width := 1
	switch n := len(l.Name); {
	case n > 0xFFFF:
		flags, width = 2, 4
	case n > 0xFF:
		flags, width = 1, 2
	}
	if l.Type != LinkHard {
		flags |= 0x08
	}
	if l.HasOrder {
		flags |= 0x04
	}
	if l.Charset != CharsetASCII {
		flags |= 0x10
	}

	b := utils.NewBuilder(sizes, 16+len(l.Name)+len(l.Target))
	b.U8(1)
	b.U8(flags)
	if flags&0x08 != 0 {
		b.U8(uint8(l.Type))
	}
	if flags&0x04 != 0 {
		b.U64(uint64(l.CreationOrder)) //nolint:gosec // G115: stored as raw 64 bits
	}
	if flags&0x10 != 0 {
		b.U8(l.Charset)
	}
	b.Uint(uint64(len(l.Name)), width)
	b.Bytes([]byte(l.Name))
	switch l.Type {
	case LinkHard:
		b.Offset(l.Address)
	case LinkSoft, LinkExternal:
		b.U16(uint16(len(l.Target))) //nolint:gosec // G115: link values are short
		b.Bytes(l.Target)
	default:
		b.Bytes(l.Target)
	}
	return b.Result()
}

// NewHardLink returns a hard link to the object header at address.
func NewHardLink(name string, address uint64) *LinkMessage {
	return &LinkMessage{Name: name, Type: LinkHard, Address: address, Charset: CharsetUTF8}
}
