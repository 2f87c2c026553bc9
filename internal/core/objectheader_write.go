package core

import (
	"fmt"

	"github.com/scigolib/h5store/internal/utils"
)

// NewObjectHeader returns an empty version 2 header ready for messages.
func NewObjectHeader() *ObjectHeader {
	return &ObjectHeader{Version: 2, Chunks: 1}
}

func (h *ObjectHeader) messageHeaderLen() int {
	if h.Flags&HdrAttrOrderTrack != 0 {
		return 6
	}
	return 4
}

// BodySize returns the bytes the messages need inside a version 2 chunk.
func (h *ObjectHeader) BodySize() uint64 {
	n := 0
	for _, m := range h.Messages {
		n += h.messageHeaderLen() + len(m.Data)
	}
	return uint64(n) //nolint:gosec // G115: non-negative
}

// EncodedSize returns the minimal single-chunk version 2 size, prefix and
// checksum included, for the header's current flags.
func (h *ObjectHeader) EncodedSize() uint64 {
	return uint64(h.prefixLen()) + h.BodySize() + 4 //nolint:gosec // G115: prefix length is small
}

// FitsIn reports whether the messages can be re-encoded into an existing
// single version 2 chunk of alloc bytes without changing its layout.
func (h *ObjectHeader) FitsIn(alloc uint64) bool {
	return h.Version == 2 && h.EncodedSize() <= alloc
}

// SizeFor picks the smallest chunk-size field able to describe a chunk of
// total bytes and returns the adjusted flags.
func SizeFor(flags uint8, total uint64) uint8 {
	flags &^= HdrChunk0SizeMask
	for code := uint8(0); code < 3; code++ {
		if total < uint64(1)<<(8*(uint(1)<<code)) {
			return flags | code
		}
	}
	return flags | 3
}

// Encode serializes the header as a single version 2 chunk of exactly
// alloc bytes (the minimal size when alloc is zero). Space past the last
// message becomes NIL messages, or a gap when too small for one.
func (h *ObjectHeader) Encode(alloc uint64) ([]byte, error) {
	if h.Version != 2 {
		return nil, fmt.Errorf("cannot encode object header version %d", h.Version)
	}
	if alloc == 0 {
		alloc = h.EncodedSize()
	}
	if alloc < h.EncodedSize() {
		return nil, fmt.Errorf("object header needs %d bytes, allocation holds %d", h.EncodedSize(), alloc)
	}

	prefix := uint64(h.prefixLen()) //nolint:gosec // G115: small
	body := alloc - prefix - 4
	width := 1 << (h.Flags & HdrChunk0SizeMask)
	if width < 8 && body >= uint64(1)<<(8*width) {
		return nil, fmt.Errorf("chunk body of %d bytes exceeds its %d-byte size field", body, width)
	}

	b := utils.NewBuilder(utils.DefaultSizes, int(alloc)) //nolint:gosec // G115: bounded by caller
	b.Bytes([]byte(ohdrSignature))
	b.U8(2)
	b.U8(h.Flags)
	if h.Flags&HdrStoreTimes != 0 {
		times := make([]byte, 16)
		copy(times, h.Times)
		b.Bytes(times)
	}
	if h.Flags&HdrAttrPhaseChange != 0 {
		b.U16(h.MaxCompactAttrs)
		b.U16(h.MinDenseAttrs)
	}
	b.Uint(body, width)

	hdrLen := h.messageHeaderLen()
	for _, m := range h.Messages {
		if len(m.Data) > 0xFFFF {
			return nil, fmt.Errorf("message type %d too large (%d bytes)", m.Type, len(m.Data))
		}
		h.putMessage(b, m.Type, m.Flags, m.CreationOrder, m.Data)
	}

	gap := int(alloc) - 4 - b.Len() //nolint:gosec // G115: bounded by caller
	for gap >= hdrLen {
		n := min(gap-hdrLen, 0xFFFF)
		h.putMessage(b, MsgNil, 0, 0, make([]byte, n))
		gap -= hdrLen + n
	}
	b.Zeros(gap)
	b.U32(utils.Lookup3(b.Result()))
	return b.Result(), nil
}

func (h *ObjectHeader) putMessage(b *utils.Builder, t MessageType, flags uint8, order uint16, data []byte) {
	b.U8(uint8(t)) //nolint:gosec // G115: version 2 message types fit one byte
	b.U16(uint16(len(data))) //nolint:gosec // G115: checked by caller
	b.U8(flags)
	if h.Flags&HdrAttrOrderTrack != 0 {
		b.U16(order)
	}
	b.Bytes(data)
}

// Slack returns the allocation size used for a freshly placed header:
// the minimal size plus room for later messages.
func Slack(minimal uint64) uint64 {
	extra := minimal / 2
	if extra < 96 {
		extra = 96
	}
	return minimal + extra
}

// Prepare converts the header to a version 2 layout able to hold alloc
// bytes, dropping version 1 bookkeeping. It is used before relocating a
// header to a fresh allocation.
func (h *ObjectHeader) Prepare(alloc uint64) {
	h.Version = 2
	h.RefCount = 0
	h.Flags = SizeFor(h.Flags, alloc)
}
