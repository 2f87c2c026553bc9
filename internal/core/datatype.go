package core

import (
	"encoding/binary"
	"fmt"

	"github.com/scigolib/h5store/internal/utils"
)

// DatatypeClass represents HDF5 datatype classes.
type DatatypeClass uint8

// Datatype class constants define the fundamental HDF5 data types.
const (
	DatatypeFixed     DatatypeClass = 0
	DatatypeFloat     DatatypeClass = 1
	DatatypeTime      DatatypeClass = 2
	DatatypeString    DatatypeClass = 3
	DatatypeBitfield  DatatypeClass = 4
	DatatypeOpaque    DatatypeClass = 5
	DatatypeCompound  DatatypeClass = 6
	DatatypeReference DatatypeClass = 7
	DatatypeEnum      DatatypeClass = 8
	DatatypeVarLen    DatatypeClass = 9
	DatatypeArray     DatatypeClass = 10
	DatatypeComplex   DatatypeClass = 11
)

var classNames = map[DatatypeClass]string{
	DatatypeFixed:     "integer",
	DatatypeFloat:     "float",
	DatatypeTime:      "time",
	DatatypeString:    "string",
	DatatypeBitfield:  "bitfield",
	DatatypeOpaque:    "opaque",
	DatatypeCompound:  "compound",
	DatatypeReference: "reference",
	DatatypeEnum:      "enum",
	DatatypeVarLen:    "variable-length",
	DatatypeArray:     "array",
	DatatypeComplex:   "complex",
}

// String padding types stored in the low nibble of a string class bit field.
const (
	PadNullTerm  uint8 = 0
	PadNullPad   uint8 = 1
	PadSpacePad  uint8 = 2
	CharsetASCII uint8 = 0
	CharsetUTF8  uint8 = 1
)

// DatatypeMessage represents HDF5 datatype message.
type DatatypeMessage struct {
	Class         DatatypeClass
	Version       uint8
	Size          uint32
	ClassBitField uint32
	Properties    []byte
}

// ParseDatatypeMessage parses a datatype message from header message data.
func ParseDatatypeMessage(data []byte) (*DatatypeMessage, error) {
	if len(data) < 8 {
		return nil, utils.Corruptf("datatype message too short: %d bytes", len(data))
	}
	dt := &DatatypeMessage{
		Class:         DatatypeClass(data[0] & 0x0F),
		Version:       data[0] >> 4,
		ClassBitField: uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16,
		Size:          binary.LittleEndian.Uint32(data[4:8]),
	}
	if dt.Version < 1 || dt.Version > 5 {
		return nil, utils.Corruptf("datatype version %d", dt.Version)
	}

	props := data[8:]
	need := 0
	switch dt.Class {
	case DatatypeFixed, DatatypeBitfield:
		need = 4
	case DatatypeFloat:
		need = 12
	}
	if len(props) < need {
		return nil, utils.Corruptf("%s datatype properties truncated", dt.ClassName())
	}
	if need > 0 || dt.Class == DatatypeString {
		props = props[:need]
	}
	dt.Properties = append([]byte(nil), props...)
	return dt, nil
}

// Encode serializes the datatype message.
func (dt *DatatypeMessage) Encode() []byte {
	out := make([]byte, 8, 8+len(dt.Properties))
	out[0] = dt.Version<<4 | uint8(dt.Class)
	out[1] = byte(dt.ClassBitField)
	out[2] = byte(dt.ClassBitField >> 8)
	out[3] = byte(dt.ClassBitField >> 16)
	binary.LittleEndian.PutUint32(out[4:8], dt.Size)
	return append(out, dt.Properties...)
}

// NewFixedPoint returns a little-endian integer type of size bytes.
func NewFixedPoint(size uint32, signed bool) *DatatypeMessage {
	var bits uint32
	if signed {
		bits |= 0x08
	}
	props := make([]byte, 4)
	binary.LittleEndian.PutUint16(props[2:], uint16(size*8)) //nolint:gosec // G115: size is at most 8
	return &DatatypeMessage{Class: DatatypeFixed, Version: 1, Size: size, ClassBitField: bits, Properties: props}
}

// NewFloatingPoint returns a little-endian IEEE 754 type of 4 or 8 bytes.
func NewFloatingPoint(size uint32) *DatatypeMessage {
	props := make([]byte, 12)
	var signPos uint32
	switch size {
	case 4:
		signPos = 31
		binary.LittleEndian.PutUint16(props[2:], 32)
		props[4], props[5], props[6], props[7] = 23, 8, 0, 23
		binary.LittleEndian.PutUint32(props[8:], 127)
	default:
		size = 8
		signPos = 63
		binary.LittleEndian.PutUint16(props[2:], 64)
		props[4], props[5], props[6], props[7] = 52, 11, 0, 52
		binary.LittleEndian.PutUint32(props[8:], 1023)
	}
	// Mantissa normalization "msb implied" lives in bits 4-5.
	bits := uint32(0x20) | signPos<<8
	return &DatatypeMessage{Class: DatatypeFloat, Version: 1, Size: size, ClassBitField: bits, Properties: props}
}

// NewFixedString returns a fixed-length string type of size bytes.
func NewFixedString(size uint32, pad, charset uint8) *DatatypeMessage {
	return &DatatypeMessage{
		Class:         DatatypeString,
		Version:       1,
		Size:          size,
		ClassBitField: uint32(pad&0x0F) | uint32(charset&0x0F)<<4,
	}
}

// ClassName returns a readable class name.
func (dt *DatatypeMessage) ClassName() string {
	if name, ok := classNames[dt.Class]; ok {
		return name
	}
	return fmt.Sprintf("class-%d", dt.Class)
}

// BigEndian reports the byte order bit of integer, float and bitfield types.
func (dt *DatatypeMessage) BigEndian() bool {
	switch dt.Class {
	case DatatypeFixed, DatatypeFloat, DatatypeBitfield, DatatypeTime:
		return dt.ClassBitField&0x01 != 0
	}
	return false
}

// Signed reports whether a fixed-point type is two's complement signed.
func (dt *DatatypeMessage) Signed() bool {
	return dt.Class == DatatypeFixed && dt.ClassBitField&0x08 != 0
}

// StringPad returns the padding of a fixed-length string type.
func (dt *DatatypeMessage) StringPad() uint8 { return uint8(dt.ClassBitField & 0x0F) }

// Charset returns the character set of a string type.
func (dt *DatatypeMessage) Charset() uint8 { return uint8(dt.ClassBitField>>4) & 0x0F }

// IsVarLen reports a variable-length sequence or string.
func (dt *DatatypeMessage) IsVarLen() bool { return dt.Class == DatatypeVarLen }

// IsVarString reports a variable-length string.
func (dt *DatatypeMessage) IsVarString() bool {
	return dt.Class == DatatypeVarLen && dt.ClassBitField&0x0F == 1
}

// IsFixedString reports a fixed-length string type.
func (dt *DatatypeMessage) IsFixedString() bool { return dt.Class == DatatypeString }

// BitRange returns the bit offset and precision of integer and float types.
func (dt *DatatypeMessage) BitRange() (offset, precision uint16) {
	if len(dt.Properties) < 4 {
		return 0, uint16(dt.Size * 8) //nolint:gosec // G115: element sizes are small
	}
	return binary.LittleEndian.Uint16(dt.Properties[0:]), binary.LittleEndian.Uint16(dt.Properties[2:])
}

// IsIEEE reports whether a float type uses the standard IEEE 754 layout
// for its size.
func (dt *DatatypeMessage) IsIEEE() bool {
	if dt.Class != DatatypeFloat || len(dt.Properties) < 12 {
		return false
	}
	ref := NewFloatingPoint(dt.Size)
	if ref.Size != dt.Size {
		return false
	}
	return string(ref.Properties) == string(dt.Properties) && dt.ClassBitField&^0x01 == ref.ClassBitField
}

// Equal compares two datatypes by their encoded form.
func (dt *DatatypeMessage) Equal(other *DatatypeMessage) bool {
	return other != nil && string(dt.Encode()) == string(other.Encode())
}

// String returns a short human readable description such as "int32le".
func (dt *DatatypeMessage) String() string {
	order := "le"
	if dt.BigEndian() {
		order = "be"
	}
	switch dt.Class {
	case DatatypeFixed:
		prefix := "uint"
		if dt.Signed() {
			prefix = "int"
		}
		return fmt.Sprintf("%s%d%s", prefix, dt.Size*8, order)
	case DatatypeFloat:
		return fmt.Sprintf("float%d%s", dt.Size*8, order)
	case DatatypeString:
		return fmt.Sprintf("string[%d]", dt.Size)
	case DatatypeVarLen:
		if dt.IsVarString() {
			return "vlen-string"
		}
		return "vlen-sequence"
	}
	return fmt.Sprintf("%s[%d]", dt.ClassName(), dt.Size)
}
