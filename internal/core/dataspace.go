package core

import (
	"fmt"

	"github.com/scigolib/h5store/internal/utils"
)

// DataspaceType represents the type of dataspace.
type DataspaceType uint8

// Dataspace type constants define the dimensionality of datasets.
const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// DataspaceMessage represents HDF5 dataspace message.
type DataspaceMessage struct {
	Version    uint8
	Type       DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // nil unless stored
}

// NewDataspace builds a simple dataspace, or a scalar one for empty dims.
func NewDataspace(dims []uint64) *DataspaceMessage {
	if len(dims) == 0 {
		return &DataspaceMessage{Version: 2, Type: DataspaceScalar}
	}
	return &DataspaceMessage{Version: 2, Type: DataspaceSimple, Dimensions: append([]uint64(nil), dims...)}
}

// ElementCount returns the number of elements the dataspace selects.
func (ds *DataspaceMessage) ElementCount() (uint64, error) {
	switch ds.Type {
	case DataspaceNull:
		return 0, nil
	case DataspaceScalar:
		return 1, nil
	default:
		return utils.ElementCount(ds.Dimensions)
	}
}

// ParseDataspaceMessage parses a dataspace message from header message data.
func ParseDataspaceMessage(data []byte, sizes utils.Sizes) (*DataspaceMessage, error) {
	c := utils.NewCursor(data, sizes)
	ds := &DataspaceMessage{Version: c.U8()}
	rank := int(c.U8())
	flags := c.U8()

	switch ds.Version {
	case 1:
		c.Skip(5)
		ds.Type = DataspaceSimple
		if rank == 0 {
			ds.Type = DataspaceScalar
		}
	case 2:
		ds.Type = DataspaceType(c.U8())
		if ds.Type > DataspaceNull {
			return nil, utils.Corruptf("unknown dataspace type %d", ds.Type)
		}
	default:
		return nil, utils.Unsupportedf("dataspace version %d", ds.Version)
	}
	if rank > 32 {
		return nil, utils.Corruptf("dataspace rank %d exceeds 32", rank)
	}

	if rank > 0 {
		ds.Dimensions = make([]uint64, rank)
		for i := range ds.Dimensions {
			ds.Dimensions[i] = c.Length()
		}
		if flags&0x01 != 0 {
			ds.MaxDims = make([]uint64, rank)
			for i := range ds.MaxDims {
				ds.MaxDims[i] = c.Length()
			}
		}
	}
	if err := c.Err(); err != nil {
		return nil, utils.WrapError("dataspace decode failed", err)
	}
	return ds, nil
}

// Encode serializes the dataspace as a version 2 message.
func (ds *DataspaceMessage) Encode(sizes utils.Sizes) []byte {
	b := utils.NewBuilder(sizes, 4+16*len(ds.Dimensions))
	b.U8(2)
	b.U8(uint8(len(ds.Dimensions))) //nolint:gosec // G115: rank is at most 32
	var flags uint8
	if ds.MaxDims != nil {
		flags |= 0x01
	}
	b.U8(flags)
	b.U8(uint8(ds.Type))
	for _, d := range ds.Dimensions {
		b.Length(d)
	}
	for _, d := range ds.MaxDims {
		b.Length(d)
	}
	return b.Result()
}

// String renders the shape like (4, 5, 6).
func (ds *DataspaceMessage) String() string {
	switch ds.Type {
	case DataspaceScalar:
		return "scalar"
	case DataspaceNull:
		return "null"
	}
	return fmt.Sprint(ds.Dimensions)
}
