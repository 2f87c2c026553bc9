package writer

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// EncodedChunk is one chunk after the filter pipeline ran over it.
type EncodedChunk struct {
	Index   uint64
	Data    []byte
	Mask    uint32
	RawSize int
}

// DefaultWorkers is the encoder parallelism used when none is configured.
func DefaultWorkers() int {
	return max(1, min(runtime.GOMAXPROCS(0), 8))
}

// EncodeChunks filters count chunks on up to workers goroutines and hands
// them to sink strictly in index order. load builds the raw bytes of one
// chunk and must be safe for concurrent use. sink runs on the calling
// goroutine, so it may allocate and write file space. Cancelling ctx stops
// the work after the batch in flight; chunks already passed to sink stay
// written.
func EncodeChunks(ctx context.Context, fp *FilterPipeline, workers int, count uint64,
	load func(index uint64) ([]byte, error), sink func(EncodedChunk) error,
) error {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	batch := uint64(workers) * 2 //nolint:gosec // G115: workers is positive
	results := make([]EncodedChunk, batch)

	for start := uint64(0); start < count; start += batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(batch, count-start)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := uint64(0); i < n; i++ {
			index := start + i
			slot := &results[i]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				raw, err := load(index)
				if err != nil {
					return err
				}
				data, mask, err := fp.Apply(raw)
				if err != nil {
					return err
				}
				*slot = EncodedChunk{Index: index, Data: data, Mask: mask, RawSize: len(raw)}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i := uint64(0); i < n; i++ {
			if err := sink(results[i]); err != nil {
				return err
			}
			results[i] = EncodedChunk{}
		}
	}
	return nil
}

// ForEachChunk runs fn for every index in [0, count) on up to workers
// goroutines. Used on the read path, where chunks land in disjoint parts
// of the destination buffer.
func ForEachChunk(ctx context.Context, workers int, count uint64, fn func(ctx context.Context, index uint64) error) error {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := uint64(0); i < count; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
