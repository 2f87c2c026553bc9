package writer

import (
	"fmt"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/utils"
)

// FilterID represents HDF5 filter identifiers.
type FilterID uint16

// Filters this engine can encode and decode.
const (
	FilterDeflate    FilterID = FilterID(core.FilterDeflate)
	FilterShuffle    FilterID = FilterID(core.FilterShuffle)
	FilterFletcher32 FilterID = FilterID(core.FilterFletcher32)
	FilterLZ4        FilterID = FilterID(core.FilterLZ4)
	FilterZstd       FilterID = FilterID(core.FilterZstd)
)

// Filter interface for data transformation.
// Filters are applied in sequence during write (e.g., Shuffle → Deflate → Fletcher32)
// and reversed during read (Fletcher32 → Deflate → Shuffle).
type Filter interface {
	// ID returns the HDF5 filter identifier.
	ID() FilterID

	// Name returns human-readable filter name.
	Name() string

	// Apply applies filter to data (compression/checksum on write path).
	Apply(data []byte) ([]byte, error)

	// Remove reverses filter (decompression/verification on read path).
	Remove(data []byte) ([]byte, error)

	// Encode returns the flags and client data stored in the pipeline message.
	Encode() (flags uint16, cdValues []uint32)
}

// FilterPipeline manages a chain of filters applied to chunk data.
// Filters run in order on write and in reverse on read.
//
// Safe for concurrent use once built: filters keep no per-call state.
type FilterPipeline struct {
	filters []Filter
}

// NewFilterPipeline creates an empty filter pipeline.
func NewFilterPipeline() *FilterPipeline {
	return &FilterPipeline{}
}

// AddFilter adds a filter to the end of the pipeline.
func (fp *FilterPipeline) AddFilter(f Filter) {
	fp.filters = append(fp.filters, f)
}

// Apply runs every filter in order (write path). An optional filter that
// fails is skipped and its bit set in the returned mask.
func (fp *FilterPipeline) Apply(data []byte) ([]byte, uint32, error) {
	var mask uint32
	result := data
	for i, filter := range fp.filters {
		out, err := filter.Apply(result)
		if err != nil {
			if flags, _ := filter.Encode(); flags&core.FilterOptional != 0 {
				mask |= 1 << uint(i)
				continue
			}
			return nil, 0, fmt.Errorf("filter %s failed: %w", filter.Name(), err)
		}
		result = out
	}
	return result, mask, nil
}

// Remove reverses the filters in reverse order (read path), skipping those
// whose bit is set in mask.
func (fp *FilterPipeline) Remove(data []byte, mask uint32) ([]byte, error) {
	result := data
	for i := len(fp.filters) - 1; i >= 0; i-- {
		if i < 32 && mask&(1<<uint(i)) != 0 {
			continue
		}
		filter := fp.filters[i]
		var err error
		result, err = filter.Remove(result)
		if err != nil {
			return nil, fmt.Errorf("filter %s remove failed: %w", filter.Name(), err)
		}
	}
	return result, nil
}

// IsEmpty returns true if the pipeline has no filters.
func (fp *FilterPipeline) IsEmpty() bool {
	return len(fp.filters) == 0
}

// Count returns the number of filters in the pipeline.
func (fp *FilterPipeline) Count() int {
	return len(fp.filters)
}

// Filters returns the filters in write order.
func (fp *FilterPipeline) Filters() []Filter {
	return append([]Filter(nil), fp.filters...)
}

// Message builds the filter pipeline message describing this pipeline.
func (fp *FilterPipeline) Message() *core.FilterPipelineMessage {
	msg := &core.FilterPipelineMessage{Version: 2}
	for _, f := range fp.filters {
		flags, cd := f.Encode()
		info := core.FilterInfo{ID: uint16(f.ID()), Flags: flags, ClientData: cd}
		if f.ID() >= 256 {
			info.Name = f.Name()
		}
		msg.Filters = append(msg.Filters, info)
	}
	return msg
}

// PipelineFromMessage rebuilds the pipeline a dataset was written with.
// elemSize supplies the shuffle element size when the message omits it.
func PipelineFromMessage(msg *core.FilterPipelineMessage, elemSize uint32) (*FilterPipeline, error) {
	fp := NewFilterPipeline()
	if msg == nil {
		return fp, nil
	}
	if len(msg.Filters) > 32 {
		return nil, utils.Corruptf("pipeline with %d filters", len(msg.Filters))
	}
	for _, info := range msg.Filters {
		cd := func(i int, def uint32) uint32 {
			if i < len(info.ClientData) {
				return info.ClientData[i]
			}
			return def
		}
		switch FilterID(info.ID) {
		case FilterDeflate:
			fp.AddFilter(NewDeflateFilter(int(cd(0, 6))))
		case FilterShuffle:
			fp.AddFilter(NewShuffleFilter(cd(0, elemSize)))
		case FilterFletcher32:
			fp.AddFilter(NewFletcher32Filter())
		case FilterLZ4:
			fp.AddFilter(NewLZ4Filter(cd(0, 0)))
		case FilterZstd:
			fp.AddFilter(NewZstdFilter(int(int32(cd(0, 3))))) //nolint:gosec // G115: level is stored as a signed int
		default:
			name := info.Name
			if name == "" {
				name = fmt.Sprintf("filter %d", info.ID)
			}
			return nil, utils.Unsupportedf("%s (id %d)", name, info.ID)
		}
	}
	return fp, nil
}
