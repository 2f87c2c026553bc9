package core

import (
	"io"

	"github.com/scigolib/h5store/internal/utils"
)

// v1PrefixSize covers version, reserved byte, message count, reference
// count, header size and the alignment padding before the first message.
const v1PrefixSize = 16

// readV1Header parses a version 1 object header and its continuation blocks.
// Version 1 messages are 8-byte aligned and carry a 3-byte reserved tail
// after the flags.
func readV1Header(r io.ReaderAt, address uint64, sizes utils.Sizes) (*ObjectHeader, error) {
	pre, err := readBlock(r, address, v1PrefixSize)
	if err != nil {
		return nil, err
	}
	c := utils.NewCursor(pre, sizes)
	h := &ObjectHeader{Version: c.U8(), Chunks: 1}
	c.Skip(1)
	count := int(c.U16())
	h.RefCount = c.U32()
	size := uint64(c.U32())
	if err := utils.CheckAlloc(size, "object header chunk"); err != nil {
		return nil, err
	}
	h.Allocated = v1PrefixSize + size

	body, err := readBlock(r, address+v1PrefixSize, int(size)) //nolint:gosec // G115: bounded by CheckAlloc
	if err != nil {
		return nil, err
	}

	parsed := 0
	conts, err := h.parseV1Messages(body, sizes, &parsed)
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
		more, err := h.parseV1Messages(block, sizes, &parsed)
		if err != nil {
			return nil, err
		}
		conts = append(conts, more...)
		h.Chunks++
		if h.Chunks > maxHeaderChunks {
			return nil, utils.Corruptf("object header continuation chain too long")
		}
	}
	if parsed > count {
		return nil, utils.Corruptf("object header holds %d messages, prefix declares %d", parsed, count)
	}
	return h, nil
}

func (h *ObjectHeader) parseV1Messages(body []byte, sizes utils.Sizes, parsed *int) ([]Continuation, error) {
	var conts []Continuation
	c := utils.NewCursor(body, sizes)
	for c.Remaining() >= 8 {
		m := &HeaderMessage{Type: MessageType(c.U16())}
		size := int(c.U16())
		m.Flags = c.U8()
		c.Skip(3)
		if size > c.Remaining() {
			return nil, utils.Corruptf("message type %d size %d overruns its chunk", m.Type, size)
		}
		m.Data = append([]byte(nil), c.Bytes(size)...)
		*parsed++
		if err := h.keep(m, sizes, &conts); err != nil {
			return nil, err
		}
	}
	return conts, c.Err()
}
