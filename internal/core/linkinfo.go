package core

import "github.com/scigolib/h5store/internal/utils"

// LinkInfoMessage describes how a new-style group stores its links.
type LinkInfoMessage struct {
	Version          uint8
	Flags            uint8
	MaxCreationIndex uint64
	FractalHeap      uint64
	NameIndex        uint64
	OrderIndex       uint64
}

// NewLinkInfo returns the link info of an empty compact group.
func NewLinkInfo() *LinkInfoMessage {
	return &LinkInfoMessage{
		FractalHeap: utils.UndefinedAddress,
		NameIndex:   utils.UndefinedAddress,
		OrderIndex:  utils.UndefinedAddress,
	}
}

// ParseLinkInfoMessage parses a link info message (type 2).
func ParseLinkInfoMessage(data []byte, sizes utils.Sizes) (*LinkInfoMessage, error) {
	c := utils.NewCursor(data, sizes)
	li := &LinkInfoMessage{Version: c.U8(), Flags: c.U8(), OrderIndex: utils.UndefinedAddress}
	if li.Version != 0 {
		return nil, utils.Unsupportedf("link info version %d", li.Version)
	}
	if li.Flags&0x01 != 0 {
		li.MaxCreationIndex = c.U64()
	}
	li.FractalHeap = c.Offset()
	li.NameIndex = c.Offset()
	if li.Flags&0x02 != 0 {
		li.OrderIndex = c.Offset()
	}
	if err := c.Err(); err != nil {
		return nil, utils.WrapError("link info decode failed", err)
	}
	return li, nil
}

// Dense reports whether links are stored in a fractal heap.
func (li *LinkInfoMessage) Dense() bool {
	return li.FractalHeap != utils.UndefinedAddress
}

// Encode serializes the link info message.
func (li *LinkInfoMessage) Encode(sizes utils.Sizes) []byte {
	b := utils.NewBuilder(sizes, 2+8+3*int(sizes.Offset))
	b.U8(0)
	b.U8(li.Flags)
	if li.Flags&0x01 != 0 {
		b.U64(li.MaxCreationIndex)
	}
	b.Offset(li.FractalHeap)
	b.Offset(li.NameIndex)
	if li.Flags&0x02 != 0 {
		b.Offset(li.OrderIndex)
	}
	return b.Result()
}

// EncodeGroupInfo returns a version 0 group info message with default
// compact/dense thresholds and no estimates.
func EncodeGroupInfo() []byte {
	return []byte{0, 0}
}

// SymbolTableMessage locates the B-tree and local heap of an old-style group.
type SymbolTableMessage struct {
	BTree uint64
	Heap  uint64
}

// ParseSymbolTableMessage parses a symbol table message (type 17).
func ParseSymbolTableMessage(data []byte, sizes utils.Sizes) (*SymbolTableMessage, error) {
	c := utils.NewCursor(data, sizes)
	st := &SymbolTableMessage{BTree: c.Offset(), Heap: c.Offset()}
	if err := c.Err(); err != nil {
		return nil, utils.WrapError("symbol table decode failed", err)
	}
	return st, nil
}
