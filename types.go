package h5store

import (
	"encoding/binary"
	"fmt"

	"github.com/scigolib/h5store/internal/core"
)

// DataType is the element type of a dataset or attribute as seen from Go:
// the stored type with its byte order folded away.
type DataType int

// Element types. Complex values are stored as their Float32 or Float64
// parts along a trailing dimension of 2.
const (
	Unknown DataType = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	Text
)

var dataTypeNames = [...]string{
	Unknown: "unknown",
	Int8:    "int8",
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	Text:    "text",
}

func (t DataType) String() string {
	if t < 0 || int(t) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(t))
	}
	return dataTypeNames[t]
}

// Size returns the element size in bytes, or 0 for Text and Unknown.
func (t DataType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// datatype returns the little-endian on-disk descriptor of a numeric tag.
func (t DataType) datatype() *core.DatatypeMessage {
	switch t {
	case Float32, Float64:
		return core.NewFloatingPoint(uint32(t.Size())) //nolint:gosec // G115: sizes are 4 or 8
	case Int8, Int16, Int32, Int64:
		return core.NewFixedPoint(uint32(t.Size()), true) //nolint:gosec // G115: sizes are small
	case Uint8, Uint16, Uint32, Uint64:
		return core.NewFixedPoint(uint32(t.Size()), false) //nolint:gosec // G115: sizes are small
	}
	return nil
}

// nativeType maps a stored descriptor to the Go element type it reads as
// without loss.
func nativeType(dt *core.DatatypeMessage) DataType {
	switch dt.Class {
	case core.DatatypeFixed:
		signed := dt.Signed()
		switch dt.Size {
		case 1:
			return pick(signed, Int8, Uint8)
		case 2:
			return pick(signed, Int16, Uint16)
		case 4:
			return pick(signed, Int32, Uint32)
		case 8:
			return pick(signed, Int64, Uint64)
		}
	case core.DatatypeFloat:
		if !dt.IsIEEE() {
			return Unknown
		}
		switch dt.Size {
		case 4:
			return Float32
		case 8:
			return Float64
		}
	case core.DatatypeString:
		return Text
	case core.DatatypeVarLen:
		if dt.IsVarString() {
			return Text
		}
	}
	return Unknown
}

func pick(signed bool, s, u DataType) DataType {
	if signed {
		return s
	}
	return u
}

// Element is the set of Go types datasets and attributes hold. Any other
// type argument fails to compile.
type Element interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 |
		float32 | float64 | complex64 | complex128
}

// descriptor is what an element type contributes to the stored form: its
// on-disk tag and the trailing dimensions it adds to the shape.
type descriptor struct {
	tag   DataType
	extra []uint64 // trailing dimensions, complex only
}

func describe[T Element]() descriptor {
	var zero T
	switch any(zero).(type) {
	case int8:
		return descriptor{tag: Int8}
	case uint8:
		return descriptor{tag: Uint8}
	case int16:
		return descriptor{tag: Int16}
	case uint16:
		return descriptor{tag: Uint16}
	case int32:
		return descriptor{tag: Int32}
	case uint32:
		return descriptor{tag: Uint32}
	case int64:
		return descriptor{tag: Int64}
	case uint64:
		return descriptor{tag: Uint64}
	case float32:
		return descriptor{tag: Float32}
	case float64:
		return descriptor{tag: Float64}
	case complex64:
		return descriptor{tag: Float32, extra: []uint64{2}}
	default: // complex128
		return descriptor{tag: Float64, extra: []uint64{2}}
	}
}

// TypeOf returns the stored element type of T.
func TypeOf[T Element]() DataType { return describe[T]().tag }

// diskShape is the stored shape of a value of the given shape.
func (d descriptor) diskShape(shape []uint64) []uint64 {
	return append(append([]uint64(nil), shape...), d.extra...)
}

// valueShape strips the element's trailing dimensions off a stored shape.
func (d descriptor) valueShape(disk []uint64) ([]uint64, error) {
	n := len(d.extra)
	if len(disk) < n {
		return nil, fmt.Errorf("%w: stored rank %d cannot hold %d trailing element dimensions", ErrTypeMismatch, len(disk), n)
	}
	for i, want := range d.extra {
		if got := disk[len(disk)-n+i]; got != want {
			return nil, fmt.Errorf("%w: trailing dimension %d, element needs %d", ErrTypeMismatch, got, want)
		}
	}
	return append([]uint64(nil), disk[:len(disk)-n]...), nil
}

// encode lays data out in the stored little-endian form.
func encode[T Element](data []T) []byte {
	buf, err := binary.Append(make([]byte, 0, binary.Size(data)), binary.LittleEndian, data)
	if err != nil {
		// Unreachable: every Element is a fixed-size type.
		panic(err)
	}
	return buf
}
