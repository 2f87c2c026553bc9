package core

import (
	"fmt"

	"github.com/scigolib/h5store/internal/utils"
)

// DataLayoutClass represents the storage layout type for dataset data.
type DataLayoutClass uint8

// Data layout class constants define how dataset data is stored in the file.
const (
	LayoutCompact    DataLayoutClass = 0
	LayoutContiguous DataLayoutClass = 1
	LayoutChunked    DataLayoutClass = 2
	LayoutVirtual    DataLayoutClass = 3
)

// String returns the layout class name.
func (c DataLayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return fmt.Sprintf("layout-%d", uint8(c))
}

// ChunkIndexType identifies the structure that indexes a chunked dataset.
type ChunkIndexType uint8

// Chunk index types. Layout versions 1-3 always use a version 1 B-tree.
const (
	IndexBTreeV1     ChunkIndexType = 0
	IndexSingleChunk ChunkIndexType = 1
	IndexImplicit    ChunkIndexType = 2
	IndexFixedArray  ChunkIndexType = 3
	IndexExtArray    ChunkIndexType = 4
	IndexBTreeV2     ChunkIndexType = 5
)

// DataLayoutMessage represents HDF5 data layout message.
type DataLayoutMessage struct {
	Version uint8
	Class   DataLayoutClass

	// Address is the contiguous data address or the chunk index address.
	Address uint64
	// Size is the contiguous storage size; zero for version 1/2 messages
	// where it derives from the dataspace.
	Size        uint64
	CompactData []byte

	// ChunkDims excludes the trailing element-size dimension.
	ChunkDims   []uint64
	ElementSize uint32
	IndexType   ChunkIndexType

	ChunkFlags         uint8
	SingleFilteredSize uint64
	SingleFilterMask   uint32
	FixedArrayPageBits uint8
}

// ParseDataLayoutMessage parses a data layout message from header message data.
func ParseDataLayoutMessage(data []byte, sizes utils.Sizes) (*DataLayoutMessage, error) {
	c := utils.NewCursor(data, sizes)
	dl := &DataLayoutMessage{Version: c.U8(), Address: utils.UndefinedAddress}

	var err error
	switch dl.Version {
	case 1, 2:
		err = dl.parseV1(c)
	case 3, 4:
		err = dl.parseV3(c)
	default:
		return nil, utils.Unsupportedf("data layout version %d", dl.Version)
	}
	if err == nil {
		err = c.Err()
	}
	if err != nil {
		return nil, utils.WrapError("data layout decode failed", err)
	}
	return dl, nil
}

func (dl *DataLayoutMessage) parseV1(c *utils.Cursor) error {
	ndims := int(c.U8())
	dl.Class = DataLayoutClass(c.U8())
	c.Skip(5)
	if dl.Class != LayoutCompact {
		dl.Address = c.Offset()
	}
	dims := make([]uint64, ndims)
	for i := range dims {
		dims[i] = uint64(c.U32())
	}
	switch dl.Class {
	case LayoutChunked:
		if ndims < 2 {
			return utils.Corruptf("chunked layout with %d dimensions", ndims)
		}
		dl.ChunkDims = dims[:ndims-1]
		dl.ElementSize = uint32(dims[ndims-1]) //nolint:gosec // G115: decoded from 4 bytes
	case LayoutCompact:
		size := c.U32()
		dl.CompactData = append([]byte(nil), c.Bytes(int(size))...)
		dl.Size = uint64(size)
	case LayoutContiguous:
	default:
		return utils.Corruptf("unknown layout class %d", dl.Class)
	}
	return nil
}

func (dl *DataLayoutMessage) parseV3(c *utils.Cursor) error {
	dl.Class = DataLayoutClass(c.U8())
	switch dl.Class {
	case LayoutCompact:
		size := c.U16()
		dl.CompactData = append([]byte(nil), c.Bytes(int(size))...)
		dl.Size = uint64(size)
	case LayoutContiguous:
		dl.Address = c.Offset()
		dl.Size = c.Length()
	case LayoutChunked:
		if dl.Version == 3 {
			return dl.parseChunkedV3(c)
		}
		return dl.parseChunkedV4(c)
	case LayoutVirtual:
		return utils.Unsupportedf("virtual dataset layout")
	default:
		return utils.Corruptf("unknown layout class %d", dl.Class)
	}
	return nil
}

func (dl *DataLayoutMessage) parseChunkedV3(c *utils.Cursor) error {
	ndims := int(c.U8())
	if ndims < 2 {
		return utils.Corruptf("chunked layout with %d dimensions", ndims)
	}
	dl.Address = c.Offset()
	dl.ChunkDims = make([]uint64, ndims-1)
	for i := range dl.ChunkDims {
		dl.ChunkDims[i] = uint64(c.U32())
	}
	dl.ElementSize = c.U32()
	dl.IndexType = IndexBTreeV1
	return nil
}

func (dl *DataLayoutMessage) parseChunkedV4(c *utils.Cursor) error {
	dl.ChunkFlags = c.U8()
	ndims := int(c.U8())
	width := int(c.U8())
	if ndims < 2 || width < 1 || width > 8 {
		return utils.Corruptf("chunked layout v4 with %d dimensions of %d bytes", ndims, width)
	}
	dl.ChunkDims = make([]uint64, ndims-1)
	for i := range dl.ChunkDims {
		dl.ChunkDims[i] = c.Uint(width)
	}
	dl.ElementSize = uint32(c.Uint(width)) //nolint:gosec // G115: element sizes are small
	dl.IndexType = ChunkIndexType(c.U8())
	switch dl.IndexType {
	case IndexSingleChunk:
		if dl.ChunkFlags&0x02 != 0 {
			dl.SingleFilteredSize = c.Length()
			dl.SingleFilterMask = c.U32()
		}
	case IndexImplicit:
	case IndexFixedArray:
		dl.FixedArrayPageBits = c.U8()
	case IndexExtArray:
		c.Skip(5)
	case IndexBTreeV2:
		c.Skip(6)
	default:
		return utils.Corruptf("unknown chunk index type %d", dl.IndexType)
	}
	dl.Address = c.Offset()
	return nil
}

// NewCompactLayout stores data inside the object header.
func NewCompactLayout(data []byte) *DataLayoutMessage {
	return &DataLayoutMessage{Version: 3, Class: LayoutCompact, CompactData: data, Size: uint64(len(data)), Address: utils.UndefinedAddress}
}

// NewContiguousLayout describes size bytes at address.
func NewContiguousLayout(address, size uint64) *DataLayoutMessage {
	return &DataLayoutMessage{Version: 3, Class: LayoutContiguous, Address: address, Size: size}
}

// NewChunkedLayout describes a version 1 B-tree indexed chunked dataset.
func NewChunkedLayout(btree uint64, chunkDims []uint64, elemSize uint32) *DataLayoutMessage {
	return &DataLayoutMessage{
		Version:     3,
		Class:       LayoutChunked,
		Address:     btree,
		ChunkDims:   append([]uint64(nil), chunkDims...),
		ElementSize: elemSize,
		IndexType:   IndexBTreeV1,
	}
}

// Encode serializes the layout as a version 3 message. Version 4 chunk
// indexes cannot be expressed and are rejected.
func (dl *DataLayoutMessage) Encode(sizes utils.Sizes) ([]byte, error) {
	b := utils.NewBuilder(sizes, 32)
	b.U8(3)
	b.U8(uint8(dl.Class))
	switch dl.Class {
	case LayoutCompact:
		if len(dl.CompactData) > 0xFFFF {
			return nil, fmt.Errorf("compact data of %d bytes exceeds 64 KiB", len(dl.CompactData))
		}
		b.U16(uint16(len(dl.CompactData))) //nolint:gosec // G115: checked above
		b.Bytes(dl.CompactData)
	case LayoutContiguous:
		b.Offset(dl.Address)
		b.Length(dl.Size)
	case LayoutChunked:
		if dl.IndexType != IndexBTreeV1 {
			return nil, utils.Unsupportedf("writing chunk index type %d", dl.IndexType)
		}
		b.U8(uint8(len(dl.ChunkDims) + 1)) //nolint:gosec // G115: rank is at most 32
		b.Offset(dl.Address)
		for _, d := range dl.ChunkDims {
			if d > 0xFFFFFFFF {
				return nil, fmt.Errorf("chunk dimension %d exceeds 32 bits", d)
			}
			b.U32(uint32(d))
		}
		b.U32(dl.ElementSize)
	default:
		return nil, utils.Unsupportedf("writing %s layout", dl.Class)
	}
	return b.Result(), nil
}
