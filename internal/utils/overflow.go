package utils

import (
	"fmt"
	"math"
)

// SafeMultiply multiplies two uint64 values and returns the result if no overflow occurs.
func SafeMultiply(a, b uint64) (uint64, error) {
	if a != 0 && b > math.MaxUint64/a {
		return 0, fmt.Errorf("multiplication overflow: %d * %d exceeds uint64 max", a, b)
	}
	return a * b, nil
}

// ElementCount returns the product of dims. A rank-0 shape holds one element.
func ElementCount(dims []uint64) (uint64, error) {
	n := uint64(1)
	for i, d := range dims {
		var err error
		if n, err = SafeMultiply(n, d); err != nil {
			return 0, fmt.Errorf("dimension %d: %w", i, err)
		}
	}
	return n, nil
}

// ByteSize returns ElementCount(dims) * elemSize with overflow checking.
func ByteSize(dims []uint64, elemSize uint64) (uint64, error) {
	n, err := ElementCount(dims)
	if err != nil {
		return 0, err
	}
	return SafeMultiply(n, elemSize)
}

// MaxInMemory bounds a single in-memory buffer built from file-provided sizes.
const MaxInMemory = 1 << 34

// CheckAlloc rejects file-provided sizes that cannot be materialized.
func CheckAlloc(size uint64, what string) error {
	if size > MaxInMemory || size > uint64(math.MaxInt) {
		return Corruptf("%s size %d exceeds the in-memory limit", what, size)
	}
	return nil
}
