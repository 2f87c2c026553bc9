// Package core provides HDF5 file format parsing and encoding for the
// superblock, object headers and the header messages the engine uses.
package core

import (
	"fmt"

	"github.com/scigolib/h5store/internal/utils"
)

// Attribute represents an HDF5 attribute with metadata and data.
type Attribute struct {
	Name      string
	Charset   uint8
	Datatype  *DatatypeMessage
	Dataspace *DataspaceMessage
	Data      []byte
}

// ParseAttributeMessage parses an attribute message (versions 1 to 3).
func ParseAttributeMessage(data []byte, sizes utils.Sizes) (*Attribute, error) {
	c := utils.NewCursor(data, sizes)
	version := c.U8()
	flags := c.U8()
	nameLen := int(c.U16())
	dtLen := int(c.U16())
	dsLen := int(c.U16())
	attr := &Attribute{}

	pad := func(n int) int { return n }
	switch version {
	case 1:
		pad = func(n int) int { return (n + 7) &^ 7 }
	case 2:
	case 3:
		attr.Charset = c.U8()
	default:
		return nil, utils.Unsupportedf("attribute message version %d", version)
	}
	if flags&0x03 != 0 {
		return nil, utils.Unsupportedf("shared datatype or dataspace in attribute")
	}

	attr.Name = cString(c.Bytes(pad(nameLen)))
	dtRaw := c.Bytes(pad(dtLen))
	dsRaw := c.Bytes(pad(dsLen))
	if err := c.Err(); err != nil {
		return nil, utils.WrapError("attribute decode failed", err)
	}

	var err error
	if attr.Datatype, err = ParseDatatypeMessage(dtRaw); err != nil {
		return nil, utils.WrapError(fmt.Sprintf("attribute %q datatype", attr.Name), err)
	}
	if attr.Dataspace, err = ParseDataspaceMessage(dsRaw, sizes); err != nil {
		return nil, utils.WrapError(fmt.Sprintf("attribute %q dataspace", attr.Name), err)
	}

	n, err := attr.Dataspace.ElementCount()
	if err != nil {
		return nil, err
	}
	size, err := utils.SafeMultiply(n, uint64(attr.Datatype.Size))
	if err != nil {
		return nil, err
	}
	if size > uint64(c.Remaining()) {
		return nil, utils.Corruptf("attribute %q data truncated: need %d bytes, have %d", attr.Name, size, c.Remaining())
	}
	attr.Data = append([]byte(nil), c.Bytes(int(size))...) //nolint:gosec // G115: bounded by message size
	return attr, nil
}

// Encode serializes the attribute as a version 3 message.
func (a *Attribute) Encode(sizes utils.Sizes) []byte {
	name := append([]byte(a.Name), 0)
	dt := a.Datatype.Encode()
	ds := a.Dataspace.Encode(sizes)

	b := utils.NewBuilder(sizes, 9+len(name)+len(dt)+len(ds)+len(a.Data))
	b.U8(3)
	b.U8(0)
	b.U16(uint16(len(name))) //nolint:gosec // G115: attribute names are short
	b.U16(uint16(len(dt)))   //nolint:gosec // G115: datatype messages are small
	b.U16(uint16(len(ds)))   //nolint:gosec // G115: dataspace messages are small
	b.U8(a.Charset)
	b.Bytes(name)
	b.Bytes(dt)
	b.Bytes(ds)
	b.Bytes(a.Data)
	return b.Result()
}

// AttributeInfoMessage describes where an object's attributes live.
type AttributeInfoMessage struct {
	Version          uint8
	Flags            uint8
	MaxCreationIndex uint16
	FractalHeap      uint64
	NameIndex        uint64
	OrderIndex       uint64
}

// ParseAttributeInfoMessage parses an attribute info message.
func ParseAttributeInfoMessage(data []byte, sizes utils.Sizes) (*AttributeInfoMessage, error) {
	c := utils.NewCursor(data, sizes)
	ai := &AttributeInfoMessage{Version: c.U8(), Flags: c.U8(), OrderIndex: utils.UndefinedAddress}
	if ai.Flags&0x01 != 0 {
		ai.MaxCreationIndex = c.U16()
	}
	ai.FractalHeap = c.Offset()
	ai.NameIndex = c.Offset()
	if ai.Flags&0x02 != 0 {
		ai.OrderIndex = c.Offset()
	}
	if err := c.Err(); err != nil {
		return nil, utils.WrapError("attribute info decode failed", err)
	}
	return ai, nil
}

// Dense reports whether attributes are stored in a fractal heap.
func (ai *AttributeInfoMessage) Dense() bool {
	return ai.FractalHeap != utils.UndefinedAddress
}
