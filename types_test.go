package h5store

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5store/internal/core"
)

func TestDescribe(t *testing.T) {
	assert.Equal(t, Int8, TypeOf[int8]())
	assert.Equal(t, Uint64, TypeOf[uint64]())
	assert.Equal(t, Float32, TypeOf[float32]())
	assert.Equal(t, Float32, TypeOf[complex64]())
	assert.Equal(t, Float64, TypeOf[complex128]())

	d := describe[complex64]()
	assert.Equal(t, []uint64{4, 5, 2}, d.diskShape([]uint64{4, 5}))
	shape, err := d.valueShape([]uint64{4, 5, 2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, shape)

	_, err = d.valueShape([]uint64{4, 5, 3})
	require.ErrorIs(t, err, ErrTypeMismatch)
	_, err = d.valueShape(nil)
	require.ErrorIs(t, err, ErrTypeMismatch)

	shape, err = describe[int16]().valueShape([]uint64{7})
	require.NoError(t, err)
	assert.Equal(t, []uint64{7}, shape)
}

func TestNativeType(t *testing.T) {
	tests := []struct {
		dt   *core.DatatypeMessage
		want DataType
	}{
		{core.NewFixedPoint(1, true), Int8},
		{core.NewFixedPoint(2, false), Uint16},
		{core.NewFixedPoint(8, true), Int64},
		{core.NewFloatingPoint(4), Float32},
		{core.NewFloatingPoint(8), Float64},
		{core.NewFixedString(5, core.PadNullPad, core.CharsetUTF8), Text},
		{core.NewFixedPoint(3, true), Unknown},
		{&core.DatatypeMessage{Class: core.DatatypeCompound, Size: 8}, Unknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nativeType(tt.dt), tt.dt.String())
	}
	for _, tag := range []DataType{Int8, Uint8, Int16, Uint16, Int32, Uint32, Int64, Uint64, Float32, Float64} {
		assert.Equal(t, tag, nativeType(tag.datatype()), tag.String())
	}
	assert.Equal(t, "float32", Float32.String())
	assert.Equal(t, "DataType(99)", DataType(99).String())
}

func TestCoerce(t *testing.T) {
	t.Run("identical layout", func(t *testing.T) {
		src := []float32{1.5, -2, 3}
		dst := make([]float32, 3)
		require.NoError(t, coerce(dst, Float32.datatype(), encode(src)))
		assert.Equal(t, src, dst)
	})

	t.Run("integer widening", func(t *testing.T) {
		dst := make([]float64, 3)
		require.NoError(t, coerce(dst, Int16.datatype(), encode([]int16{-1, 0, 300})))
		assert.Equal(t, []float64{-1, 0, 300}, dst)
	})

	t.Run("big endian", func(t *testing.T) {
		dt := core.NewFixedPoint(4, false)
		dt.ClassBitField |= 0x01
		raw := binary.BigEndian.AppendUint32(nil, 70000)
		dst := make([]int64, 1)
		require.NoError(t, coerce(dst, dt, raw))
		assert.Equal(t, int64(70000), dst[0])
	})

	t.Run("float to int truncates", func(t *testing.T) {
		dst := make([]int32, 2)
		require.NoError(t, coerce(dst, Float64.datatype(), encode([]float64{2.9, -7.5})))
		assert.Equal(t, []int32{2, -7}, dst)
	})

	t.Run("complex", func(t *testing.T) {
		dst := make([]complex128, 2)
		require.NoError(t, coerce(dst, Float32.datatype(), encode([]float32{1, 2, 3, 4})))
		assert.Equal(t, []complex128{complex(1, 2), complex(3, 4)}, dst)
	})

	t.Run("count mismatch", func(t *testing.T) {
		dst := make([]int8, 3)
		require.ErrorIs(t, coerce(dst, Int8.datatype(), []byte{1, 2}), ErrTypeMismatch)
	})

	t.Run("text is not numeric", func(t *testing.T) {
		dst := make([]uint8, 3)
		dt := core.NewFixedString(3, core.PadNullPad, core.CharsetASCII)
		require.ErrorIs(t, coerce(dst, dt, []byte("abc")), ErrTypeMismatch)
	})
}

func TestEncode(t *testing.T) {
	raw := encode([]float64{math.Pi})
	require.Len(t, raw, 8)
	assert.Equal(t, math.Pi, math.Float64frombits(binary.LittleEndian.Uint64(raw)))
	assert.Len(t, encode([]complex64{1 + 2i}), 8)
}

func TestArray(t *testing.T) {
	a := NewArray[int32](2, 3)
	assert.Equal(t, 6, a.Len())
	assert.Equal(t, 2, a.Rank())
	a.Set(7, 1, 2)
	assert.Equal(t, int32(7), a.At(1, 2))
	assert.Equal(t, int32(7), a.Data()[5])
	assert.Panics(t, func() { a.At(2, 0) })
	assert.Panics(t, func() { a.At(0) })

	require.NoError(t, a.Reshape(3, 2))
	assert.Equal(t, []uint64{3, 2}, a.Shape())
	require.Error(t, a.Reshape(4))

	_, err := Wrap([]float64{1, 2, 3}, 2, 2)
	require.Error(t, err)
	w, err := Wrap([]float64{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 4.0, w.At(1, 1))

	s := ScalarOf(uint8(9))
	assert.Equal(t, 0, s.Rank())
	assert.Equal(t, uint8(9), s.Scalar())
	assert.Panics(t, func() { w.Scalar() })

	require.NoError(t, a.resize([]uint64{4}))
	assert.Equal(t, []int32{0, 0, 0, 0}, a.Data(), "resize clears reused storage")
	require.NoError(t, a.resize([]uint64{10}))
	assert.Equal(t, 10, a.Len())
}

func TestVectors(t *testing.T) {
	vs := [][3]float32{{1, 2, 3}, {4, 5, 6}}
	a := VectorsOf[float32](vs)
	assert.Equal(t, []uint64{2, 3}, a.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, a.Data())

	back, err := AsVectors[float32, [3]float32](a)
	require.NoError(t, err)
	assert.Equal(t, vs, back)

	_, err = AsVectors[float32, [4]float32](a)
	require.ErrorIs(t, err, ErrTypeMismatch)

	m := VectorsOf[float64]([][9]float64{{1, 0, 0, 0, 1, 0, 0, 0, 1}})
	assert.Equal(t, []uint64{1, 9}, m.Shape())
}
