package h5store

import (
	"log/slog"
	"runtime"

	"github.com/scigolib/h5store/internal/writer"
)

// Option configures Open.
//
// Example:
//
//	c, err := h5store.Open("scan.h5", h5store.WriteOrNew,
//	    h5store.WithLogger(slog.Default()),
//	)
type Option func(*config)

type config struct {
	logger         *Logger
	disableLocking bool
	workers        int
}

func newConfig(opts []Option) config {
	cfg := config{logger: NewLogger(nil), workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sends the container's warnings and debug records to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = &Logger{Logger: l}
		}
	}
}

// WithoutLocking opens the file without the advisory lock. Conflicting
// openers in other processes then go undetected. Setting the
// environment variable HDF5_USE_FILE_LOCKING=FALSE has the same effect.
func WithoutLocking() Option {
	return func(c *config) { c.disableLocking = true }
}

// WithDefaultWorkers sets the chunk compression parallelism transfers
// use unless they pass WithWorkers. The default is GOMAXPROCS.
func WithDefaultWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// Codec selects the compression filter of chunked datasets.
type Codec int

// Codecs. Deflate is readable by every HDF5 tool; LZ4 and Zstandard need
// the registered filter plugins.
const (
	CodecDeflate Codec = iota
	CodecZstd
	CodecLZ4
)

func (c Codec) String() string {
	switch c {
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	}
	return "deflate"
}

// TransferOption tunes a dataset read or write or a CopyObject call.
// Options that do not apply to an operation are ignored.
type TransferOption func(*transfer)

type transfer struct {
	level      int
	codec      Codec
	shuffle    bool
	fletcher   bool
	chunks     []uint64
	progress   Progress
	workers    int
	recompress int
}

func (c *Container) defaultTransfer() transfer {
	return transfer{workers: c.cfg.workers, recompress: -1}
}

// newTransfer applies opts for operation op on path. Out of range
// compression levels are ErrMalformed.
func (c *Container) newTransfer(op, path string, opts []TransferOption) (transfer, error) {
	t := c.defaultTransfer()
	for _, opt := range opts {
		opt(&t)
	}
	if t.level < 0 || t.level > 9 {
		return t, fail(op, path, ErrMalformed, "compression level %d is not in 0 to 9", t.level)
	}
	if t.recompress > 9 {
		return t, fail(op, path, ErrMalformed, "recompression level %d is not in 0 to 9", t.recompress)
	}
	return t, nil
}

// WithCompression compresses chunked datasets at level, 0 (off) to 9.
// Other levels fail the operation with ErrMalformed.
// Small and scalar datasets are never chunked and so never compressed.
func WithCompression(level int) TransferOption {
	return func(t *transfer) { t.level = level }
}

// WithCodec selects the compression filter WithCompression applies.
func WithCodec(c Codec) TransferOption {
	return func(t *transfer) { t.codec = c }
}

// WithShuffle adds the byte shuffle filter ahead of compression, which
// usually helps numeric data compress.
func WithShuffle() TransferOption {
	return func(t *transfer) { t.shuffle = true }
}

// WithFletcher32 adds a Fletcher-32 checksum to every chunk.
func WithFletcher32() TransferOption {
	return func(t *transfer) { t.fletcher = true }
}

// WithChunks overrides the chunk shape. The dataset is chunked even when
// small. Dimensions are in stored order, complex parts included.
func WithChunks(dims ...uint64) TransferOption {
	return func(t *transfer) { t.chunks = append([]uint64(nil), dims...) }
}

// WithProgress reports the fraction done to p and stops the transfer
// once p reports it was cancelled.
func WithProgress(p Progress) TransferOption {
	return func(t *transfer) { t.progress = p }
}

// WithWorkers bounds the goroutines compressing chunks.
func WithWorkers(n int) TransferOption {
	return func(t *transfer) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithRecompress makes CopyObject lay each dataset out afresh, compressed
// at level 0 to 9 with the codec and filters of the other options. A
// negative level, the default, keeps the source layout and filters.
func WithRecompress(level int) TransferOption {
	return func(t *transfer) { t.recompress = min(level, 9) }
}

// pipeline builds the filter pipeline of a chunked dataset, or nil if no
// filter is requested.
func (t *transfer) pipeline(elemSize uint32) *writer.FilterPipeline {
	if t.level == 0 && !t.shuffle && !t.fletcher {
		return nil
	}
	p := writer.NewFilterPipeline()
	if t.shuffle && elemSize > 1 {
		p.AddFilter(writer.NewShuffleFilter(elemSize))
	}
	if t.level > 0 {
		switch t.codec {
		case CodecZstd:
			p.AddFilter(writer.NewZstdFilter(t.level))
		case CodecLZ4:
			p.AddFilter(writer.NewLZ4Filter(0))
		default:
			p.AddFilter(writer.NewDeflateFilter(t.level))
		}
	}
	if t.fletcher {
		p.AddFilter(writer.NewFletcher32Filter())
	}
	return p
}
