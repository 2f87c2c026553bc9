package writer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/utils"
)

func floatBytes(n int) []byte {
	buf := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(i)*0.25))
	}
	return buf
}

func TestFilters_RoundTrip(t *testing.T) {
	data := floatBytes(4096)
	tests := []struct {
		name   string
		filter Filter
	}{
		{"deflate0", NewDeflateFilter(0)},
		{"deflate6", NewDeflateFilter(6)},
		{"deflate9", NewDeflateFilter(9)},
		{"shuffle", NewShuffleFilter(4)},
		{"fletcher32", NewFletcher32Filter()},
		{"lz4", NewLZ4Filter(0)},
		{"lz4 small blocks", NewLZ4Filter(1000)},
		{"zstd", NewZstdFilter(3)},
		{"zstd best", NewZstdFilter(19)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := tt.filter.Apply(data)
			require.NoError(t, err)
			dec, err := tt.filter.Remove(enc)
			require.NoError(t, err)
			require.Equal(t, data, dec)

			empty, err := tt.filter.Apply(nil)
			require.NoError(t, err)
			back, err := tt.filter.Remove(empty)
			require.NoError(t, err)
			require.Empty(t, back)
		})
	}
}

func TestDeflate_ZlibStream(t *testing.T) {
	enc, err := NewDeflateFilter(6).Apply(bytes.Repeat([]byte("h5"), 500))
	require.NoError(t, err)
	// zlib header: deflate method, 32K window.
	require.Equal(t, byte(0x78), enc[0])
	require.Less(t, len(enc), 100)
}

func TestShuffle_Layout(t *testing.T) {
	f := NewShuffleFilter(2)
	out, err := f.Apply([]byte{1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 3, 5, 2, 4, 6, 7}, out)

	back, err := f.Remove(out)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7}, back)

	same, err := NewShuffleFilter(1).Apply([]byte{9, 8, 7})
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7}, same)
}

func TestFletcher32_KnownValues(t *testing.T) {
	require.Equal(t, uint32(0x05080406), fletcher32([]byte{1, 2, 3, 4}))
	require.Equal(t, uint32(0x05040402), fletcher32([]byte{1, 2, 3}))
	require.Equal(t, uint32(0), fletcher32(nil))

	f := NewFletcher32Filter()
	enc, err := f.Apply([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 0x06, 0x04, 0x08, 0x05}, enc)

	swapped := []byte{1, 2, 3, 4, 0x05, 0x08, 0x04, 0x06}
	_, err = f.Remove(swapped)
	require.NoError(t, err)

	enc[0] ^= 0xFF
	_, err = f.Remove(enc)
	require.ErrorIs(t, err, utils.ErrCorrupt)
}

func TestLZ4_Format(t *testing.T) {
	random := make([]byte, 64)
	for i := range random {
		random[i] = byte(i*131 + 7)
	}
	enc, err := NewLZ4Filter(0).Apply(random)
	require.NoError(t, err)
	require.Equal(t, uint64(64), binary.BigEndian.Uint64(enc[0:]))
	require.Equal(t, uint32(64), binary.BigEndian.Uint32(enc[8:]))

	compressible := bytes.Repeat([]byte{0xAB}, 3000)
	enc, err = NewLZ4Filter(1024).Apply(compressible)
	require.NoError(t, err)
	require.Equal(t, uint32(1024), binary.BigEndian.Uint32(enc[8:]))
	require.Less(t, len(enc), 300)

	_, err = NewLZ4Filter(0).Remove(enc[:14])
	require.ErrorIs(t, err, utils.ErrCorrupt)
}

type failingFilter struct{ flags uint16 }

func (f failingFilter) ID() FilterID { return 400 }
func (f failingFilter) Name() string { return "failing" }
func (f failingFilter) Apply([]byte) ([]byte, error) { return nil, errors.New("boom") }
func (f failingFilter) Remove([]byte) ([]byte, error) { return nil, errors.New("boom") }
func (f failingFilter) Encode() (uint16, []uint32) { return f.flags, nil }

func TestPipeline_OptionalMask(t *testing.T) {
	fp := NewFilterPipeline()
	fp.AddFilter(NewShuffleFilter(4))
	fp.AddFilter(failingFilter{flags: core.FilterOptional})
	fp.AddFilter(NewDeflateFilter(1))

	data := floatBytes(100)
	enc, mask, err := fp.Apply(data)
	require.NoError(t, err)
	require.Equal(t, uint32(0b010), mask)

	dec, err := fp.Remove(enc, mask)
	require.NoError(t, err)
	require.Equal(t, data, dec)

	strict := NewFilterPipeline()
	strict.AddFilter(failingFilter{})
	_, _, err = strict.Apply(data)
	require.Error(t, err)
}

func TestPipeline_MessageRoundTrip(t *testing.T) {
	fp := NewFilterPipeline()
	fp.AddFilter(NewShuffleFilter(8))
	fp.AddFilter(NewZstdFilter(5))
	fp.AddFilter(NewLZ4Filter(4096))
	fp.AddFilter(NewDeflateFilter(4))
	fp.AddFilter(NewFletcher32Filter())

	msg, err := core.ParseFilterPipelineMessage(fp.Message().Encode())
	require.NoError(t, err)
	require.Equal(t, "zstd", msg.Filters[1].Name)
	require.Empty(t, msg.Filters[3].Name)

	rebuilt, err := PipelineFromMessage(msg, 8)
	require.NoError(t, err)
	require.Equal(t, fp.Count(), rebuilt.Count())
	for i, f := range rebuilt.Filters() {
		require.Equal(t, fp.Filters()[i].ID(), f.ID())
		_, a := f.Encode()
		_, b := fp.Filters()[i].Encode()
		require.Equal(t, b, a)
	}
}

func TestPipeline_UnknownFilter(t *testing.T) {
	msg := &core.FilterPipelineMessage{Filters: []core.FilterInfo{{ID: core.FilterSZIP, ClientData: []uint32{4, 32}}}}
	_, err := PipelineFromMessage(msg, 4)
	require.ErrorIs(t, err, utils.ErrUnsupported)

	empty, err := PipelineFromMessage(nil, 4)
	require.NoError(t, err)
	require.True(t, empty.IsEmpty())
}
