package h5store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/scigolib/h5store/internal/core"
)

// realElement is Element without the complex types.
type realElement interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// scalars reads the numeric elements of a raw stored buffer in either
// byte order.
type scalars struct {
	raw   []byte
	size  int
	order binary.ByteOrder
	tag   DataType
}

func newScalars(dt *core.DatatypeMessage, raw []byte) (*scalars, error) {
	tag := nativeType(dt)
	if tag == Unknown || tag == Text {
		return nil, fmt.Errorf("%w: stored %s is not numeric", ErrTypeMismatch, dt)
	}
	s := &scalars{raw: raw, size: tag.Size(), order: binary.LittleEndian, tag: tag}
	if dt.BigEndian() {
		s.order = binary.BigEndian
	}
	return s, nil
}

func (s *scalars) count() int { return len(s.raw) / s.size }

func (s *scalars) bits(i int) uint64 {
	b := s.raw[i*s.size : (i+1)*s.size]
	switch s.size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(s.order.Uint16(b))
	case 4:
		return uint64(s.order.Uint32(b))
	}
	return s.order.Uint64(b)
}

// asInt and asFloat interpret element i by its stored class.
func (s *scalars) asInt(i int) int64 {
	v := s.bits(i)
	switch s.size {
	case 1:
		return int64(int8(v)) //nolint:gosec // G115: sign extension
	case 2:
		return int64(int16(v)) //nolint:gosec // G115: sign extension
	case 4:
		return int64(int32(v)) //nolint:gosec // G115: sign extension
	}
	return int64(v) //nolint:gosec // G115: two's complement reinterpretation
}

func (s *scalars) asFloat(i int) float64 {
	if s.size == 4 {
		return float64(math.Float32frombits(uint32(s.bits(i)))) //nolint:gosec // G115: 4-byte element
	}
	return math.Float64frombits(s.bits(i))
}

func at[D realElement](s *scalars, i int) D {
	switch s.tag {
	case Float32, Float64:
		return D(s.asFloat(i))
	case Int8, Int16, Int32, Int64:
		return D(s.asInt(i))
	}
	return D(s.bits(i))
}

func fill[D realElement](dst []D, s *scalars) {
	for i := range dst {
		dst[i] = at[D](s, i)
	}
}

// coerce converts a stored buffer into dst the way native type conversion
// does: any integer width, either byte order and both float precisions
// convert to the destination element type with Go conversion semantics.
// Complex destinations consume two stored elements each.
func coerce[T Element](dst []T, dt *core.DatatypeMessage, raw []byte) error {
	s, err := newScalars(dt, raw)
	if err != nil {
		return err
	}
	want := len(dst) * (1 + len(describe[T]().extra))
	if s.count() != want {
		return fmt.Errorf("%w: %d stored elements for %d values", ErrTypeMismatch, s.count(), len(dst))
	}

	// Identical little-endian layout copies straight through.
	if !dt.BigEndian() && s.tag == TypeOf[T]() {
		_, err := binary.Decode(raw, binary.LittleEndian, dst)
		return err
	}

	switch d := any(dst).(type) {
	case []int8:
		fill(d, s)
	case []uint8:
		fill(d, s)
	case []int16:
		fill(d, s)
	case []uint16:
		fill(d, s)
	case []int32:
		fill(d, s)
	case []uint32:
		fill(d, s)
	case []int64:
		fill(d, s)
	case []uint64:
		fill(d, s)
	case []float32:
		fill(d, s)
	case []float64:
		fill(d, s)
	case []complex64:
		for i := range d {
			d[i] = complex(at[float32](s, 2*i), at[float32](s, 2*i+1))
		}
	case []complex128:
		for i := range d {
			d[i] = complex(at[float64](s, 2*i), at[float64](s, 2*i+1))
		}
	}
	return nil
}
