package core

import (
	"github.com/scigolib/h5store/internal/utils"
)

// Well-known filter identifiers.
const (
	FilterDeflate    uint16 = 1
	FilterShuffle    uint16 = 2
	FilterFletcher32 uint16 = 3
	FilterSZIP       uint16 = 4
	FilterNBit       uint16 = 5
	FilterScaleOff   uint16 = 6
	FilterLZ4        uint16 = 32004
	FilterZstd       uint16 = 32015
)

// FilterOptional marks a filter whose failure does not fail the write.
const FilterOptional uint16 = 0x0001

// FilterInfo is one entry of a filter pipeline message.
type FilterInfo struct {
	ID         uint16
	Name       string
	Flags      uint16
	ClientData []uint32
}

// FilterPipelineMessage represents HDF5 filter pipeline message.
type FilterPipelineMessage struct {
	Version uint8
	Filters []FilterInfo
}

// ParseFilterPipelineMessage parses a filter pipeline message from header message data.
func ParseFilterPipelineMessage(data []byte) (*FilterPipelineMessage, error) {
	c := utils.NewCursor(data, utils.DefaultSizes)
	fp := &FilterPipelineMessage{Version: c.U8()}
	n := int(c.U8())
	switch fp.Version {
	case 1:
		c.Skip(6)
	case 2:
	default:
		return nil, utils.Unsupportedf("filter pipeline version %d", fp.Version)
	}

	for i := 0; i < n && c.Err() == nil; i++ {
		var f FilterInfo
		f.ID = c.U16()
		nameLen := 0
		if fp.Version == 1 || f.ID >= 256 {
			nameLen = int(c.U16())
		}
		f.Flags = c.U16()
		nvalues := int(c.U16())
		if nameLen > 0 {
			raw := c.Bytes(nameLen)
			if fp.Version == 1 && nameLen%8 != 0 {
				c.Skip(8 - nameLen%8)
			}
			f.Name = cString(raw)
		}
		f.ClientData = make([]uint32, nvalues)
		for j := range f.ClientData {
			f.ClientData[j] = c.U32()
		}
		if fp.Version == 1 && nvalues%2 == 1 {
			c.Skip(4)
		}
		fp.Filters = append(fp.Filters, f)
	}
	if err := c.Err(); err != nil {
		return nil, utils.WrapError("filter pipeline decode failed", err)
	}
	return fp, nil
}

// Encode serializes the pipeline as a version 2 message.
func (fp *FilterPipelineMessage) Encode() []byte {
	b := utils.NewBuilder(utils.DefaultSizes, 8+16*len(fp.Filters))
	b.U8(2)
	b.U8(uint8(len(fp.Filters))) //nolint:gosec // G115: at most 32 filters
	for _, f := range fp.Filters {
		b.U16(f.ID)
		var name []byte
		if f.ID >= 256 {
			if f.Name != "" {
				name = append([]byte(f.Name), 0)
			}
			b.U16(uint16(len(name))) //nolint:gosec // G115: filter names are short
		}
		b.U16(f.Flags)
		b.U16(uint16(len(f.ClientData))) //nolint:gosec // G115: few client values
		b.Bytes(name)
		for _, v := range f.ClientData {
			b.U32(v)
		}
	}
	return b.Result()
}

// cString trims a NUL terminated byte string.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
