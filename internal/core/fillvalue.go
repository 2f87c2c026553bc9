package core

import "github.com/scigolib/h5store/internal/utils"

// Space allocation times.
const (
	AllocEarly       uint8 = 1
	AllocLate        uint8 = 2
	AllocIncremental uint8 = 3
)

// FillValueMessage holds a dataset's fill value settings.
type FillValueMessage struct {
	AllocTime uint8
	FillTime  uint8
	Defined   bool
	Value     []byte
}

// ParseFillValueMessage parses the new-style fill value message (type 5,
// versions 1 to 3).
func ParseFillValueMessage(data []byte) (*FillValueMessage, error) {
	c := utils.NewCursor(data, utils.DefaultSizes)
	fv := &FillValueMessage{}
	switch version := c.U8(); version {
	case 1, 2:
		fv.AllocTime = c.U8()
		fv.FillTime = c.U8()
		fv.Defined = c.U8() != 0
		if version == 1 || fv.Defined {
			n := int(c.U32())
			fv.Value = append([]byte(nil), c.Bytes(n)...)
		}
	case 3:
		flags := c.U8()
		fv.AllocTime = flags & 0x03
		fv.FillTime = (flags >> 2) & 0x03
		if flags&0x20 != 0 {
			fv.Defined = true
			n := int(c.U32())
			fv.Value = append([]byte(nil), c.Bytes(n)...)
		}
	default:
		return nil, utils.Unsupportedf("fill value message version %d", version)
	}
	if err := c.Err(); err != nil {
		return nil, utils.WrapError("fill value decode failed", err)
	}
	if len(fv.Value) == 0 {
		fv.Defined = false
		fv.Value = nil
	}
	return fv, nil
}

// ParseOldFillValueMessage parses the old-style fill value message (type 4).
func ParseOldFillValueMessage(data []byte) (*FillValueMessage, error) {
	c := utils.NewCursor(data, utils.DefaultSizes)
	n := int(c.U32())
	fv := &FillValueMessage{Value: append([]byte(nil), c.Bytes(n)...)}
	if err := c.Err(); err != nil {
		return nil, utils.WrapError("old fill value decode failed", err)
	}
	fv.Defined = len(fv.Value) > 0
	return fv, nil
}

// Encode serializes the fill value as a version 3 message.
func (fv *FillValueMessage) Encode() []byte {
	flags := fv.AllocTime&0x03 | (fv.FillTime&0x03)<<2
	if fv.Defined {
		flags |= 0x20
	}
	b := utils.NewBuilder(utils.DefaultSizes, 6+len(fv.Value))
	b.U8(3)
	b.U8(flags)
	if fv.Defined {
		b.U32(uint32(len(fv.Value))) //nolint:gosec // G115: fill values are one element
		b.Bytes(fv.Value)
	}
	return b.Result()
}
