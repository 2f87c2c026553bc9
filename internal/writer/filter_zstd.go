package writer

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/scigolib/h5store/internal/utils"
)

// ZstdFilter implements the registered Zstandard filter (FilterID = 32015).
// Each chunk is one zstd frame; the first client value is the level.
type ZstdFilter struct {
	level int
}

// Encoders are pooled per speed class, decoders share one pool.
var (
	zstdEncoderPools [zstd.SpeedBestCompression + 1]sync.Pool
	zstdDecoderPool  sync.Pool
)

// NewZstdFilter creates a zstd filter. Levels below 1 become 3, the zstd default.
func NewZstdFilter(level int) *ZstdFilter {
	if level < 1 {
		level = 3
	}
	return &ZstdFilter{level: level}
}

// ID returns the HDF5 filter identifier for zstd.
func (f *ZstdFilter) ID() FilterID {
	return FilterZstd
}

// Name returns the filter name stored in the pipeline message.
func (f *ZstdFilter) Name() string {
	return "zstd"
}

func getZstdEncoder(level zstd.EncoderLevel) (*zstd.Encoder, error) {
	if v := zstdEncoderPools[level].Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(utils.MaxInMemory))
}

// Apply compresses data into a single frame.
func (f *ZstdFilter) Apply(data []byte) ([]byte, error) {
	level := zstd.EncoderLevelFromZstd(f.level)
	enc, err := getZstdEncoder(level)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder creation failed: %w", err)
	}
	defer zstdEncoderPools[level].Put(enc)
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2+64)), nil
}

// Remove decompresses a zstd frame.
func (f *ZstdFilter) Remove(data []byte) ([]byte, error) {
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd decoder creation failed: %w", err)
	}
	defer zstdDecoderPool.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// Encode returns the level as the only client value.
func (f *ZstdFilter) Encode() (flags uint16, cdValues []uint32) {
	return 0, []uint32{uint32(f.level)} //nolint:gosec // G115: levels are small
}
