package writer

// ShuffleFilter implements the byte shuffle filter (FilterID = 2).
//
// Shuffle regroups the bytes of fixed-size elements so that byte 0 of every
// element comes first, then byte 1, and so on. Numeric data compresses
// much better afterwards. Trailing bytes that do not form a whole element
// are copied unchanged.
type ShuffleFilter struct {
	elementSize uint32
}

// NewShuffleFilter creates a shuffle filter for elements of elementSize bytes.
func NewShuffleFilter(elementSize uint32) *ShuffleFilter {
	return &ShuffleFilter{elementSize: elementSize}
}

// ID returns the HDF5 filter identifier for shuffle.
func (f *ShuffleFilter) ID() FilterID {
	return FilterShuffle
}

// Name returns the HDF5 filter name.
func (f *ShuffleFilter) Name() string {
	return "shuffle"
}

// Apply shuffles data.
func (f *ShuffleFilter) Apply(data []byte) ([]byte, error) {
	return f.transpose(data, true), nil
}

// Remove restores shuffled data.
func (f *ShuffleFilter) Remove(data []byte) ([]byte, error) {
	return f.transpose(data, false), nil
}

func (f *ShuffleFilter) transpose(data []byte, forward bool) []byte {
	size := int(f.elementSize)
	n := 0
	if size > 1 {
		n = len(data) / size
	}
	if n <= 1 {
		return data
	}

	out := make([]byte, len(data))
	for b := 0; b < size; b++ {
		plane := b * n
		for e := 0; e < n; e++ {
			if forward {
				out[plane+e] = data[e*size+b]
			} else {
				out[e*size+b] = data[plane+e]
			}
		}
	}
	copy(out[n*size:], data[n*size:])
	return out
}

// Encode returns the element size as the only client value.
func (f *ShuffleFilter) Encode() (flags uint16, cdValues []uint32) {
	return 0, []uint32{f.elementSize}
}
