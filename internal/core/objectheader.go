package core

import (
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/h5store/internal/utils"
)

// ObjectType identifies the type of HDF5 object (group, dataset, datatype).
type ObjectType uint8

// Object type constants identify different HDF5 object types.
const (
	ObjectTypeUnknown ObjectType = iota
	ObjectTypeGroup
	ObjectTypeDataset
	ObjectTypeDatatype
)

// String returns a lowercase name of the object type.
func (t ObjectType) String() string {
	switch t {
	case ObjectTypeGroup:
		return "group"
	case ObjectTypeDataset:
		return "dataset"
	case ObjectTypeDatatype:
		return "datatype"
	default:
		return "unknown"
	}
}

// MessageType identifies the type of message in an object header.
type MessageType uint16

// Message type constants identify different types of header messages.
const (
	MsgNil            MessageType = 0
	MsgDataspace      MessageType = 1
	MsgLinkInfo       MessageType = 2
	MsgDatatype       MessageType = 3
	MsgFillValueOld   MessageType = 4
	MsgFillValue      MessageType = 5
	MsgLink           MessageType = 6
	MsgExternalFiles  MessageType = 7
	MsgDataLayout     MessageType = 8
	MsgBogus          MessageType = 9
	MsgGroupInfo      MessageType = 10
	MsgFilterPipeline MessageType = 11
	MsgAttribute      MessageType = 12
	MsgComment        MessageType = 13
	MsgModTimeOld     MessageType = 14
	MsgAttributeInfo  MessageType = 15
	MsgContinuation   MessageType = 16
	MsgSymbolTable    MessageType = 17
	MsgModTime        MessageType = 18
)

// Message flag bits.
const (
	MsgFlagConstant uint8 = 0x01
	MsgFlagShared   uint8 = 0x02
)

// Version 2 object header flag bits.
const (
	HdrChunk0SizeMask  uint8 = 0x03
	HdrAttrOrderTrack  uint8 = 0x04
	HdrAttrOrderIndex  uint8 = 0x08
	HdrAttrPhaseChange uint8 = 0x10
	HdrStoreTimes      uint8 = 0x20
)

const (
	ohdrSignature = "OHDR"
	ochkSignature = "OCHK"

	maxHeaderChunks = 1 << 16
)

// HeaderMessage represents a single message within an object header.
type HeaderMessage struct {
	Type          MessageType
	Flags         uint8
	CreationOrder uint16
	Data          []byte
}

// ObjectHeader represents an HDF5 object header containing metadata messages.
// Continuation and NIL messages are consumed while reading and never appear
// in Messages.
type ObjectHeader struct {
	Version         uint8
	Flags           uint8
	Address         uint64
	RefCount        uint32
	Times           []byte
	MaxCompactAttrs uint16
	MinDenseAttrs   uint16

	Messages []*HeaderMessage

	// Allocated is the on-disk size of the first chunk, prefix and checksum
	// included. Chunks counts every chunk, the first one included.
	Allocated uint64
	Chunks    int
}

// Find returns the first message of the given type, or nil.
func (h *ObjectHeader) Find(t MessageType) *HeaderMessage {
	for _, m := range h.Messages {
		if m.Type == t {
			return m
		}
	}
	return nil
}

// FindAll returns every message of the given type in header order.
func (h *ObjectHeader) FindAll(t MessageType) []*HeaderMessage {
	var out []*HeaderMessage
	for _, m := range h.Messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Remove deletes every message for which drop returns true and reports how many went.
func (h *ObjectHeader) Remove(drop func(*HeaderMessage) bool) int {
	kept := h.Messages[:0]
	removed := 0
	for _, m := range h.Messages {
		if drop(m) {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	h.Messages = kept
	return removed
}

// Add appends a message.
func (h *ObjectHeader) Add(t MessageType, flags uint8, data []byte) {
	h.Messages = append(h.Messages, &HeaderMessage{Type: t, Flags: flags, Data: data})
}

// Replace swaps the payload of the first message of type t, appending one if absent.
func (h *ObjectHeader) Replace(t MessageType, data []byte) {
	if m := h.Find(t); m != nil {
		m.Data = data
		return
	}
	h.Add(t, 0, data)
}

// Type classifies the object by the messages it carries.
func (h *ObjectHeader) Type() ObjectType {
	for _, m := range h.Messages {
		switch m.Type {
		case MsgSymbolTable, MsgLinkInfo, MsgLink, MsgGroupInfo:
			return ObjectTypeGroup
		case MsgDataLayout:
			return ObjectTypeDataset
		}
	}
	if h.Find(MsgDataspace) != nil {
		return ObjectTypeDataset
	}
	if h.Find(MsgDatatype) != nil {
		return ObjectTypeDatatype
	}
	return ObjectTypeUnknown
}

// ReadObjectHeader reads and parses an HDF5 object header from the specified address.
// It supports both version 1 and version 2 object header formats.
func ReadObjectHeader(r io.ReaderAt, address uint64, sizes utils.Sizes) (*ObjectHeader, error) {
	prefix, err := readBlock(r, address, 6)
	if err != nil {
		return nil, utils.WrapError("object header read failed", err)
	}

	var header *ObjectHeader
	switch {
	case string(prefix[:4]) == ohdrSignature:
		header, err = readV2Header(r, address, sizes)
	case prefix[0] == 1:
		header, err = readV1Header(r, address, sizes)
	default:
		return nil, utils.Corruptf("invalid object header signature % x at address %d", prefix[:4], address)
	}
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("object header at %d", address), err)
	}
	header.Address = address
	return header, nil
}

func readV2Header(r io.ReaderAt, address uint64, sizes utils.Sizes) (*ObjectHeader, error) {
	head, err := readBlock(r, address, 6)
	if err != nil {
		return nil, err
	}
	h := &ObjectHeader{Version: head[4], Flags: head[5], Chunks: 1}
	if h.Version != 2 {
		return nil, utils.Unsupportedf("object header version %d", h.Version)
	}

	prefixLen := h.prefixLen()
	pre, err := readBlock(r, address, prefixLen)
	if err != nil {
		return nil, err
	}
	c := utils.NewCursor(pre, sizes)
	c.Skip(6)
	if h.Flags&HdrStoreTimes != 0 {
		h.Times = append([]byte(nil), c.Bytes(16)...)
	}
	if h.Flags&HdrAttrPhaseChange != 0 {
		h.MaxCompactAttrs = c.U16()
		h.MinDenseAttrs = c.U16()
	}
	bodyLen := c.Uint(1 << (h.Flags & HdrChunk0SizeMask))
	if err := c.Err(); err != nil {
		return nil, err
	}
	if err := utils.CheckAlloc(bodyLen, "object header chunk"); err != nil {
		return nil, err
	}

	h.Allocated = uint64(prefixLen) + bodyLen + 4 //nolint:gosec // G115: prefix length is small
	chunk, err := readBlock(r, address, int(h.Allocated))
	if err != nil {
		return nil, err
	}
	if err := utils.VerifyLookup3(chunk, "object header"); err != nil {
		return nil, err
	}

	conts, err := h.parseV2Messages(chunk[prefixLen:len(chunk)-4], sizes)
	if err != nil {
		return nil, err
	}
	for len(conts) > 0 {
		next := conts[0]
		conts = conts[1:]
		block, err := readBlock(r, next.Address, int(next.Length)) //nolint:gosec // G115: bounded by ParseContinuation
		if err != nil {
			return nil, err
		}
		if len(block) < 8 || string(block[:4]) != ochkSignature {
			return nil, utils.Corruptf("continuation chunk at %d lacks OCHK signature", next.Address)
		}
		if err := utils.VerifyLookup3(block, "object header continuation"); err != nil {
			return nil, err
		}
		more, err := h.parseV2Messages(block[4:len(block)-4], sizes)
		if err != nil {
			return nil, err
		}
		conts = append(conts, more...)
		h.Chunks++
		if h.Chunks > maxHeaderChunks {
			return nil, utils.Corruptf("object header continuation chain too long")
		}
	}
	return h, nil
}

func (h *ObjectHeader) parseV2Messages(body []byte, sizes utils.Sizes) ([]Continuation, error) {
	hdrLen := 4
	if h.Flags&HdrAttrOrderTrack != 0 {
		hdrLen = 6
	}
	var conts []Continuation
	c := utils.NewCursor(body, sizes)
	for c.Remaining() >= hdrLen {
		m := &HeaderMessage{Type: MessageType(c.U8())}
		size := int(c.U16())
		m.Flags = c.U8()
		if hdrLen == 6 {
			m.CreationOrder = c.U16()
		}
		if size > c.Remaining() {
			return nil, utils.Corruptf("message type %d size %d overruns its chunk", m.Type, size)
		}
		m.Data = append([]byte(nil), c.Bytes(size)...)
		if err := h.keep(m, sizes, &conts); err != nil {
			return nil, err
		}
	}
	return conts, c.Err()
}

// keep routes a parsed message: continuations are queued, NIL dropped.
func (h *ObjectHeader) keep(m *HeaderMessage, sizes utils.Sizes, conts *[]Continuation) error {
	switch m.Type {
	case MsgNil:
		return nil
	case MsgContinuation:
		cont, err := ParseContinuation(m.Data, sizes)
		if err != nil {
			return err
		}
		*conts = append(*conts, cont)
		return nil
	default:
		h.Messages = append(h.Messages, m)
		return nil
	}
}

func (h *ObjectHeader) prefixLen() int {
	n := 6
	if h.Flags&HdrStoreTimes != 0 {
		n += 16
	}
	if h.Flags&HdrAttrPhaseChange != 0 {
		n += 4
	}
	return n + 1<<(h.Flags&HdrChunk0SizeMask)
}

// Continuation locates an additional object header chunk.
type Continuation struct {
	Address uint64
	Length  uint64
}

// ParseContinuation decodes a continuation message.
func ParseContinuation(data []byte, sizes utils.Sizes) (Continuation, error) {
	c := utils.NewCursor(data, sizes)
	cont := Continuation{Address: c.Offset(), Length: c.Length()}
	if err := c.Err(); err != nil {
		return Continuation{}, err
	}
	if err := utils.CheckAlloc(cont.Length, "continuation chunk"); err != nil {
		return Continuation{}, err
	}
	return cont, nil
}

// readBlock reads exactly n bytes at address.
func readBlock(r io.ReaderAt, address uint64, n int) ([]byte, error) {
	if utils.IsUndefined(address, 8) {
		return nil, utils.Corruptf("read at undefined address")
	}
	buf := make([]byte, n)
	//nolint:gosec // G115: HDF5 addresses fit in int64 for io.ReaderAt interface
	read, err := r.ReadAt(buf, int64(address))
	if read == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, utils.Corruptf("short read of %d bytes at %d (got %d)", n, address, read)
	}
	return nil, err
}

// ReadBlock exposes readBlock to the structure readers.
func ReadBlock(r io.ReaderAt, address uint64, n int) ([]byte, error) {
	return readBlock(r, address, n)
}
