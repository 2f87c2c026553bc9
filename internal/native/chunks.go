package native

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/structures"
	"github.com/scigolib/h5store/internal/utils"
	"github.com/scigolib/h5store/internal/writer"
)

// chunkIndex is the set of stored chunks of a dataset. present holds the
// row-major index of every chunk in records; chunks missing from it read
// as the fill value.
type chunkIndex struct {
	cc      *writer.ChunkCoordinator
	records []structures.ChunkRecord
	present *roaring64.Bitmap
}

func chunkCoordinator(m *datasetMeta) (*writer.ChunkCoordinator, error) {
	if len(m.dims) != len(m.layout.ChunkDims) {
		return nil, utils.Corruptf("chunk rank %d for a dataset of rank %d", len(m.layout.ChunkDims), len(m.dims))
	}
	return writer.NewChunkCoordinator(m.dims, m.layout.ChunkDims, m.dtype.Size)
}

func (s *store) chunkIndex(m *datasetMeta) (*chunkIndex, error) {
	cc, err := chunkCoordinator(m)
	if err != nil {
		return nil, err
	}
	raw, err := s.chunkRecords(m, cc)
	if err != nil {
		return nil, err
	}
	idx := &chunkIndex{cc: cc, present: roaring64.New()}
	full := uint32(cc.ChunkBytes()) //nolint:gosec // G115: chunk sizes fit 32 bits
	for _, rec := range raw {
		if !cc.Contains(rec.Coords) {
			continue
		}
		if rec.Size == 0 {
			rec.Size = full
		}
		if !idx.present.CheckedAdd(cc.ChunkIndex(rec.Coords)) {
			return nil, utils.Corruptf("chunk %v indexed twice", rec.Coords)
		}
		idx.records = append(idx.records, rec)
	}
	return idx, nil
}

// chunkRecords reads whichever chunk index the layout names.
func (s *store) chunkRecords(m *datasetMeta, cc *writer.ChunkCoordinator) ([]structures.ChunkRecord, error) {
	addr := m.layout.Address
	if utils.IsUndefined(addr, s.sb.Sizes.Offset) {
		return nil, nil
	}
	full := uint32(cc.ChunkBytes()) //nolint:gosec // G115: chunk sizes fit 32 bits
	switch m.layout.IndexType {
	case core.IndexBTreeV1:
		return structures.ReadChunkBTree(s.fw, addr, s.sb.Sizes, m.layout.ChunkDims)
	case core.IndexSingleChunk:
		rec := structures.ChunkRecord{Coords: make([]uint64, len(m.dims)), Address: addr, Size: full}
		if m.layout.ChunkFlags&0x02 != 0 {
			rec.Size = uint32(m.layout.SingleFilteredSize) //nolint:gosec // G115: chunk sizes fit 32 bits
			rec.FilterMask = m.layout.SingleFilterMask
		}
		return []structures.ChunkRecord{rec}, nil
	case core.IndexImplicit:
		total := cc.TotalChunks()
		out := make([]structures.ChunkRecord, 0, total)
		for i := uint64(0); i < total; i++ {
			out = append(out, structures.ChunkRecord{
				Coords:  cc.ChunkCoordinate(i),
				Size:    full,
				Address: addr + i*uint64(full),
			})
		}
		return out, nil
	case core.IndexFixedArray:
		return structures.ReadFixedArray(s.fw, addr, s.sb.Sizes, cc.NumChunks())
	}
	return nil, utils.Unsupportedf("chunk index type %d", m.layout.IndexType)
}

func (s *store) readChunked(ctx context.Context, m *datasetMeta, t Transfer) ([]byte, error) {
	idx, err := s.chunkIndex(m)
	if err != nil {
		return nil, err
	}
	pipeline, err := writer.PipelineFromMessage(m.filters, m.dtype.Size)
	if err != nil {
		return nil, err
	}

	out := fillBuffer(m.size, m.fill)
	count := uint64(len(idx.records))
	p := newProgress(t.Progress, max(count, 1))
	err = writer.ForEachChunk(ctx, t.Workers, count, func(_ context.Context, i uint64) error {
		rec := idx.records[i]
		raw, err := core.ReadBlock(s.fw, rec.Address, int(rec.Size))
		if err != nil {
			return fmt.Errorf("chunk %v: %w", rec.Coords, err)
		}
		data, err := pipeline.Remove(raw, rec.FilterMask)
		if err != nil {
			return fmt.Errorf("chunk %v: %w", rec.Coords, err)
		}
		if err := idx.cc.ScatterChunkData(data, rec.Coords, out); err != nil {
			return err
		}
		p.add(1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		p.add(1)
	}
	return out, nil
}

func (s *store) writeChunked(ctx context.Context, loc location, m *datasetMeta, data []byte, t Transfer) error {
	cc, err := chunkCoordinator(m)
	if err != nil {
		return err
	}
	pipeline, err := writer.PipelineFromMessage(m.filters, m.dtype.Size)
	if err != nil {
		return err
	}
	k := int(s.sb.ChunkK)
	if k == 0 {
		k = core.DefaultChunkK
	}
	bw := structures.NewChunkBTreeWriter(m.layout.ChunkDims, k)

	count := cc.TotalChunks()
	p := newProgress(t.Progress, max(count, 1))
	encErr := writer.EncodeChunks(ctx, pipeline, t.Workers, count,
		func(i uint64) ([]byte, error) {
			return cc.ExtractChunkData(data, cc.ChunkCoordinate(i), m.fill), nil
		},
		func(c writer.EncodedChunk) error {
			size := uint64(len(c.Data))
			if size > 0xFFFFFFFF {
				return fmt.Errorf("encoded chunk of %d bytes exceeds 4 GiB", size)
			}
			addr, err := s.fw.Append(c.Data)
			if err != nil {
				return err
			}
			rec := structures.ChunkRecord{
				Coords:     cc.ChunkCoordinate(c.Index),
				Size:       uint32(size),
				FilterMask: c.Mask,
				Address:    addr,
			}
			if err := bw.Add(rec); err != nil {
				return err
			}
			p.add(1)
			return nil
		})

	// Index whatever was written, so a cancelled write leaves a readable
	// dataset whose missing chunks hold the fill value.
	root, err := bw.WriteToFile(s.fw, s.fw, s.sb.Sizes)
	if err != nil {
		return errors.Join(encErr, err)
	}
	layout := core.NewChunkedLayout(root, m.layout.ChunkDims, m.dtype.Size)
	if err := s.replaceLayout(loc, m, layout); err != nil {
		return errors.Join(encErr, err)
	}
	if count == 0 {
		p.add(1)
	}
	return encErr
}
