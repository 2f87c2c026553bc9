package h5store

import "fmt"

// Array is a dynamically shaped N-dimensional value stored row-major.
// A nil or empty shape is a scalar holding one element.
type Array[T Element] struct {
	shape []uint64
	data  []T
}

func elements(shape []uint64) (int, error) {
	n := uint64(1)
	for _, d := range shape {
		if d != 0 && n > uint64(maxElements)/d {
			return 0, fmt.Errorf("shape %v overflows", shape)
		}
		n *= d
	}
	return int(n), nil //nolint:gosec // G115: bounded by maxElements
}

// maxElements bounds in-memory arrays.
const maxElements = 1 << 40

// NewArray returns a zeroed array of the given shape. It panics if the
// shape overflows.
func NewArray[T Element](shape ...uint64) *Array[T] {
	n, err := elements(shape)
	if err != nil {
		panic(err)
	}
	return &Array[T]{shape: append([]uint64(nil), shape...), data: make([]T, n)}
}

// Wrap uses data as the backing store of an array of the given shape
// without copying.
func Wrap[T Element](data []T, shape ...uint64) (*Array[T], error) {
	n, err := elements(shape)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("shape %v holds %d elements, data has %d", shape, n, len(data))
	}
	return &Array[T]{shape: append([]uint64(nil), shape...), data: data}, nil
}

// ScalarOf returns a scalar array holding v.
func ScalarOf[T Element](v T) *Array[T] {
	return &Array[T]{data: []T{v}}
}

// SliceOf returns a one-dimensional array backed by v.
func SliceOf[T Element](v []T) *Array[T] {
	return &Array[T]{shape: []uint64{uint64(len(v))}, data: v}
}

// Shape returns a copy of the extents.
func (a *Array[T]) Shape() []uint64 { return append([]uint64(nil), a.shape...) }

// Rank returns the number of dimensions; 0 for a scalar.
func (a *Array[T]) Rank() int { return len(a.shape) }

// Data returns the backing slice in row-major order. Writes through it
// change the array.
func (a *Array[T]) Data() []T { return a.data }

// Len returns the number of elements.
func (a *Array[T]) Len() int { return len(a.data) }

func (a *Array[T]) offset(idx []uint64) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("h5store: index %v into shape %v", idx, a.shape))
	}
	off := uint64(0)
	for i, x := range idx {
		if x >= a.shape[i] {
			panic(fmt.Sprintf("h5store: index %v out of range for shape %v", idx, a.shape))
		}
		off = off*a.shape[i] + x
	}
	return int(off) //nolint:gosec // G115: bounded by len(data)
}

// At returns the element at idx, one coordinate per dimension.
func (a *Array[T]) At(idx ...uint64) T { return a.data[a.offset(idx)] }

// Set stores v at idx.
func (a *Array[T]) Set(v T, idx ...uint64) { a.data[a.offset(idx)] = v }

// Scalar returns the only element of a one-element array.
func (a *Array[T]) Scalar() T {
	if len(a.data) != 1 {
		panic(fmt.Sprintf("h5store: Scalar on an array of shape %v", a.shape))
	}
	return a.data[0]
}

// Reshape changes the shape without moving data. The element count must
// stay the same.
func (a *Array[T]) Reshape(shape ...uint64) error {
	n, err := elements(shape)
	if err != nil {
		return err
	}
	if n != len(a.data) {
		return fmt.Errorf("cannot reshape %v to %v", a.shape, shape)
	}
	a.shape = append([]uint64(nil), shape...)
	return nil
}

// resize gives a the shape, reusing its storage when large enough.
func (a *Array[T]) resize(shape []uint64) error {
	n, err := elements(shape)
	if err != nil {
		return err
	}
	if cap(a.data) >= n {
		a.data = a.data[:n]
		clear(a.data)
	} else {
		a.data = make([]T, n)
	}
	a.shape = append([]uint64(nil), shape...)
	return nil
}

// Vector is a fixed-size run of elements: 2, 3 and 4 component vectors
// and row-major 3x3 and 4x4 matrices.
type Vector[T Element] interface {
	[2]T | [3]T | [4]T | [9]T | [16]T
}

// VectorsOf packs vs into an array with one trailing dimension of the
// vector length. The element type cannot be inferred from V and is
// given explicitly:
//
//	positions := h5store.VectorsOf[float32](points) // points is [][3]float32
func VectorsOf[T Element, V Vector[T]](vs []V) *Array[T] {
	var zero V
	k := len(zero)
	data := make([]T, 0, len(vs)*k)
	for _, v := range vs {
		for j := 0; j < k; j++ {
			data = append(data, v[j])
		}
	}
	return &Array[T]{shape: []uint64{uint64(len(vs)), uint64(k)}, data: data}
}

// AsVectors unpacks an array whose last dimension is the vector length.
// Leading dimensions are flattened.
func AsVectors[T Element, V Vector[T]](a *Array[T]) ([]V, error) {
	var zero V
	k := len(zero)
	if len(a.shape) == 0 || a.shape[len(a.shape)-1] != uint64(k) {
		return nil, fmt.Errorf("%w: shape %v has no trailing dimension of %d", ErrTypeMismatch, a.shape, k)
	}
	out := make([]V, len(a.data)/k)
	for i := range out {
		for j := 0; j < k; j++ {
			out[i][j] = a.data[i*k+j]
		}
	}
	return out, nil
}
