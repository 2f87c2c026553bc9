package native

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/utils"
	"github.com/scigolib/h5store/internal/writer"
)

// Fill value write time "if set", the libhdf5 default.
const fillTimeIfSet uint8 = 2

// maxCompactData keeps a compact layout message within its 16-bit size.
const maxCompactData = 0xFFFF - 64

// DatasetSpec describes a dataset to create.
type DatasetSpec struct {
	Type   *core.DatatypeMessage
	Dims   []uint64 // empty for a scalar
	Layout core.DataLayoutClass
	Chunks []uint64 // chunked layout only

	// Pipeline filters every chunk; chunked layout only.
	Pipeline *writer.FilterPipeline

	// Fill is one element; empty means zero.
	Fill []byte
}

// Transfer tunes a dataset read or write.
type Transfer struct {
	// Workers bounds chunk filter parallelism; zero picks a default.
	Workers int

	// Progress, if set, receives the number of units done out of total.
	// It may be called from several goroutines, never concurrently.
	Progress func(done, total uint64)
}

// progress serializes Transfer.Progress calls from chunk workers.
type progress struct {
	mu    sync.Mutex
	fn    func(done, total uint64)
	done  uint64
	total uint64
}

func newProgress(fn func(done, total uint64), total uint64) *progress {
	return &progress{fn: fn, total: total}
}

func (p *progress) add(n uint64) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	p.fn(p.done, p.total)
}

// Dataset is a handle on a dataset.
type Dataset struct {
	Object
}

// DatasetInfo summarizes a dataset's type, shape and storage.
type DatasetInfo struct {
	Type       *core.DatatypeMessage
	Space      *core.DataspaceMessage
	Dims       []uint64
	Layout     core.DataLayoutClass
	ChunkDims  []uint64
	ChunkIndex core.ChunkIndexType
	Filters    []core.FilterInfo
	Fill       []byte

	// DataBytes is the logical size; StoredBytes what the raw data
	// occupies on disk.
	DataBytes   uint64
	StoredBytes uint64

	// StoredChunks of TotalChunks chunks have been written.
	StoredChunks uint64
	TotalChunks  uint64
}

// OpenDataset opens the dataset at path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	info, err := f.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Kind != core.ObjectTypeDataset {
		return nil, fmt.Errorf("%s: %w", info.Path, ErrNotDataset)
	}
	h, err := f.newHandle()
	if err != nil {
		return nil, err
	}
	return &Dataset{Object{handle: h, path: info.Path, kind: info.Kind}}, nil
}

// datasetMeta is the parsed dataset description of an object header.
type datasetMeta struct {
	h       *core.ObjectHeader
	dtype   *core.DatatypeMessage
	space   *core.DataspaceMessage
	layout  *core.DataLayoutMessage
	filters *core.FilterPipelineMessage
	fill    []byte
	dims    []uint64
	size    uint64
}

func (s *store) datasetMeta(h *core.ObjectHeader) (*datasetMeta, error) {
	if h.Type() != core.ObjectTypeDataset {
		return nil, ErrNotDataset
	}
	if h.Find(core.MsgExternalFiles) != nil {
		return nil, utils.Unsupportedf("external raw data storage")
	}
	required := func(t core.MessageType, what string) (*core.HeaderMessage, error) {
		m := h.Find(t)
		if m == nil {
			return nil, utils.Corruptf("dataset without %s message", what)
		}
		if m.Flags&core.MsgFlagShared != 0 {
			return nil, utils.Unsupportedf("shared %s message", what)
		}
		return m, nil
	}

	m := &datasetMeta{h: h}
	dt, err := required(core.MsgDatatype, "datatype")
	if err != nil {
		return nil, err
	}
	if m.dtype, err = core.ParseDatatypeMessage(dt.Data); err != nil {
		return nil, err
	}
	if m.dtype.Size == 0 {
		return nil, utils.Corruptf("zero-size datatype")
	}
	ds, err := required(core.MsgDataspace, "dataspace")
	if err != nil {
		return nil, err
	}
	if m.space, err = core.ParseDataspaceMessage(ds.Data, s.sb.Sizes); err != nil {
		return nil, err
	}
	dl, err := required(core.MsgDataLayout, "layout")
	if err != nil {
		return nil, err
	}
	if m.layout, err = core.ParseDataLayoutMessage(dl.Data, s.sb.Sizes); err != nil {
		return nil, err
	}
	if fp := h.Find(core.MsgFilterPipeline); fp != nil {
		if m.filters, err = core.ParseFilterPipelineMessage(fp.Data); err != nil {
			return nil, err
		}
	}

	var fv *core.FillValueMessage
	if msg := h.Find(core.MsgFillValue); msg != nil {
		fv, err = core.ParseFillValueMessage(msg.Data)
	} else if msg := h.Find(core.MsgFillValueOld); msg != nil {
		fv, err = core.ParseOldFillValueMessage(msg.Data)
	}
	if err != nil {
		return nil, err
	}
	if fv != nil && fv.Defined && len(fv.Value) == int(m.dtype.Size) {
		m.fill = fv.Value
	}

	if m.space.Type == core.DataspaceSimple {
		m.dims = append([]uint64(nil), m.space.Dimensions...)
	}
	n, err := m.space.ElementCount()
	if err != nil {
		return nil, err
	}
	if m.size, err = utils.SafeMultiply(n, uint64(m.dtype.Size)); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Dataset) meta() (location, *datasetMeta, error) {
	loc, h, err := d.load()
	if err != nil {
		return location{}, nil, err
	}
	m, err := d.file.s.datasetMeta(h)
	if err != nil {
		return location{}, nil, fmt.Errorf("%s: %w", loc.path, err)
	}
	return loc, m, nil
}

// Describe returns the datatype and dimensions without touching the
// chunk index.
func (d *Dataset) Describe() (*core.DatatypeMessage, []uint64, error) {
	_, m, err := d.meta()
	if err != nil {
		return nil, nil, err
	}
	return m.dtype, m.dims, nil
}

// Info describes the dataset. Chunk statistics require walking the chunk
// index.
func (d *Dataset) Info() (*DatasetInfo, error) {
	_, m, err := d.meta()
	if err != nil {
		return nil, err
	}
	info := &DatasetInfo{
		Type:      m.dtype,
		Space:     m.space,
		Dims:      m.dims,
		Layout:    m.layout.Class,
		Fill:      m.fill,
		DataBytes: m.size,
	}
	if m.filters != nil {
		info.Filters = m.filters.Filters
	}
	switch m.layout.Class {
	case core.LayoutCompact:
		info.StoredBytes = uint64(len(m.layout.CompactData))
	case core.LayoutContiguous:
		if !utils.IsUndefined(m.layout.Address, d.file.s.sb.Sizes.Offset) {
			info.StoredBytes = m.size
		}
	case core.LayoutChunked:
		info.ChunkDims = m.layout.ChunkDims
		info.ChunkIndex = m.layout.IndexType
		idx, err := d.file.s.chunkIndex(m)
		if err != nil {
			return nil, err
		}
		info.TotalChunks = idx.cc.TotalChunks()
		info.StoredChunks = idx.present.GetCardinality()
		for _, rec := range idx.records {
			info.StoredBytes += uint64(rec.Size)
		}
	}
	return info, nil
}

// Spec returns the creation properties of the dataset: datatype, shape,
// layout, chunking, filter pipeline and fill value. Creating a dataset
// from it reproduces the storage layout.
func (d *Dataset) Spec() (*DatasetSpec, error) {
	_, m, err := d.meta()
	if err != nil {
		return nil, err
	}
	spec := &DatasetSpec{Type: m.dtype, Dims: m.dims, Layout: m.layout.Class, Fill: m.fill}
	if m.layout.Class == core.LayoutChunked {
		spec.Chunks = append([]uint64(nil), m.layout.ChunkDims...)
		if spec.Pipeline, err = writer.PipelineFromMessage(m.filters, m.dtype.Size); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

func (spec *DatasetSpec) validate() (uint64, error) {
	if spec.Type == nil || spec.Type.Size == 0 {
		return 0, fmt.Errorf("dataset needs a datatype with a non-zero size")
	}
	size, err := utils.ByteSize(spec.Dims, uint64(spec.Type.Size))
	if err != nil {
		return 0, err
	}
	if len(spec.Fill) != 0 && len(spec.Fill) != int(spec.Type.Size) {
		return 0, fmt.Errorf("fill value of %d bytes for %d-byte elements", len(spec.Fill), spec.Type.Size)
	}
	filtered := spec.Pipeline != nil && !spec.Pipeline.IsEmpty()

	switch spec.Layout {
	case core.LayoutCompact:
		if size > maxCompactData {
			return 0, fmt.Errorf("compact dataset of %d bytes exceeds %d", size, maxCompactData)
		}
	case core.LayoutContiguous:
	case core.LayoutChunked:
		if len(spec.Dims) == 0 {
			return 0, fmt.Errorf("a scalar dataset cannot be chunked")
		}
		if len(spec.Chunks) != len(spec.Dims) {
			return 0, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(spec.Chunks), len(spec.Dims))
		}
		for i, c := range spec.Chunks {
			if c == 0 || c > 0xFFFFFFFF {
				return 0, fmt.Errorf("chunk dimension %d is %d", i, c)
			}
			if spec.Dims[i] > 0 && c > spec.Dims[i] {
				return 0, fmt.Errorf("chunk dimension %d (%d) exceeds dataset dimension %d", i, c, spec.Dims[i])
			}
		}
		chunkBytes, err := utils.ByteSize(spec.Chunks, uint64(spec.Type.Size))
		if err != nil || chunkBytes > 0xFFFFFFFF {
			return 0, fmt.Errorf("chunks of %v elements exceed 4 GiB", spec.Chunks)
		}
	default:
		return 0, utils.Unsupportedf("creating %s datasets", spec.Layout)
	}
	if filtered && spec.Layout != core.LayoutChunked {
		return 0, fmt.Errorf("filters require a chunked layout")
	}
	return size, nil
}

// CreateDataset creates a dataset named name inside g. Contiguous storage
// is allocated immediately and compact storage lives in the header; both
// start out holding the fill value. Chunks are allocated when written.
func (g *Group) CreateDataset(name string, spec *DatasetSpec) (*Dataset, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := g.file.checkWritable(); err != nil {
		return nil, err
	}
	size, err := spec.validate()
	if errors.Is(err, ErrUnsupported) {
		return nil, err
	} else if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", joinPath(g.path, name), ErrInvalidSpec, err)
	}
	loc, h, err := g.load()
	if err != nil {
		return nil, err
	}
	s := g.file.s
	if _, err := s.lookup(h, name); err == nil {
		return nil, fmt.Errorf("%s: %w", joinPath(loc.path, name), ErrExists)
	} else if !isNotFound(err) {
		return nil, err
	}

	dh, err := s.newDatasetHeader(spec, size)
	if err != nil {
		return nil, err
	}
	addr, err := s.placeHeader(dh)
	if err != nil {
		return nil, err
	}
	if err := s.addLink(loc, h, core.NewHardLink(name, addr)); err != nil {
		return nil, err
	}
	return g.file.OpenDataset(joinPath(loc.path, name))
}

func (s *store) newDatasetHeader(spec *DatasetSpec, size uint64) (*core.ObjectHeader, error) {
	sizes := s.sb.Sizes
	fv := &core.FillValueMessage{FillTime: fillTimeIfSet, Defined: len(spec.Fill) > 0, Value: spec.Fill}

	var layout *core.DataLayoutMessage
	switch spec.Layout {
	case core.LayoutCompact:
		fv.AllocTime = core.AllocEarly
		layout = core.NewCompactLayout(fillBuffer(size, spec.Fill))
	case core.LayoutContiguous:
		fv.AllocTime = core.AllocEarly
		addr := utils.UndefinedAddress
		if size > 0 {
			var err error
			if addr, err = s.fw.Allocate(size); err != nil {
				return nil, err
			}
			if len(spec.Fill) > 0 {
				if err := s.fw.WriteAtAddress(fillBuffer(size, spec.Fill), addr); err != nil {
					return nil, err
				}
			}
		}
		layout = core.NewContiguousLayout(addr, size)
	case core.LayoutChunked:
		fv.AllocTime = core.AllocIncremental
		layout = core.NewChunkedLayout(utils.UndefinedAddress, spec.Chunks, spec.Type.Size)
	}
	encoded, err := layout.Encode(sizes)
	if err != nil {
		return nil, err
	}

	h := core.NewObjectHeader()
	h.Add(core.MsgDataspace, 0, core.NewDataspace(spec.Dims).Encode(sizes))
	h.Add(core.MsgDatatype, core.MsgFlagConstant, spec.Type.Encode())
	h.Add(core.MsgFillValue, core.MsgFlagConstant, fv.Encode())
	if spec.Layout == core.LayoutChunked && spec.Pipeline != nil && !spec.Pipeline.IsEmpty() {
		h.Add(core.MsgFilterPipeline, 0, spec.Pipeline.Message().Encode())
	}
	h.Add(core.MsgDataLayout, 0, encoded)
	return h, nil
}

// fillBuffer returns size bytes holding fill repeated, or zeros.
func fillBuffer(size uint64, fill []byte) []byte {
	buf := make([]byte, size)
	if len(fill) == 0 {
		return buf
	}
	zero := true
	for _, b := range fill {
		if b != 0 {
			zero = false
			break
		}
	}
	if !zero {
		for off := 0; off < len(buf); off += len(fill) {
			copy(buf[off:], fill)
		}
	}
	return buf
}

// Read returns the whole dataset as raw bytes in the stored byte order.
// Unwritten chunks read as the fill value. Cancelling ctx stops a chunked
// read between chunks.
func (d *Dataset) Read(ctx context.Context, t Transfer) ([]byte, error) {
	loc, m, err := d.meta()
	if err != nil {
		return nil, err
	}
	if err := utils.CheckAlloc(m.size, "dataset"); err != nil {
		return nil, err
	}
	s := d.file.s
	switch m.layout.Class {
	case core.LayoutCompact:
		if uint64(len(m.layout.CompactData)) < m.size {
			return nil, utils.Corruptf("%s: compact data holds %d of %d bytes", loc.path, len(m.layout.CompactData), m.size)
		}
		newProgress(t.Progress, 1).add(1)
		return append([]byte(nil), m.layout.CompactData[:m.size]...), nil

	case core.LayoutContiguous:
		if utils.IsUndefined(m.layout.Address, s.sb.Sizes.Offset) || m.size == 0 {
			newProgress(t.Progress, 1).add(1)
			return fillBuffer(m.size, m.fill), nil
		}
		if m.layout.Size != 0 && m.layout.Size < m.size {
			return nil, utils.Corruptf("%s: contiguous storage holds %d of %d bytes", loc.path, m.layout.Size, m.size)
		}
		buf, err := core.ReadBlock(s.fw, m.layout.Address, int(m.size)) //nolint:gosec // G115: bounded by CheckAlloc
		if err != nil {
			return nil, err
		}
		newProgress(t.Progress, 1).add(1)
		return buf, nil

	case core.LayoutChunked:
		return s.readChunked(ctx, m, t)
	}
	return nil, utils.Unsupportedf("%s layout", m.layout.Class)
}

// Write replaces the whole dataset with data, which must hold exactly the
// dataset's byte size in the stored byte order. Compact and contiguous
// data are overwritten in place. Chunked data is re-encoded into new
// chunks under a fresh chunk index.
//
// Cancelling ctx stops a chunked write between chunk batches; the chunks
// written so far stay indexed and the rest read back as the fill value.
// The error is ctx.Err().
func (d *Dataset) Write(ctx context.Context, data []byte, t Transfer) error {
	if err := d.file.checkWritable(); err != nil {
		return err
	}
	loc, m, err := d.meta()
	if err != nil {
		return err
	}
	if uint64(len(data)) != m.size {
		return fmt.Errorf("%s: %w: writing %d bytes to a dataset of %d", loc.path, ErrInvalidSpec, len(data), m.size)
	}
	s := d.file.s
	switch m.layout.Class {
	case core.LayoutCompact:
		layout := core.NewCompactLayout(append([]byte(nil), data...))
		if err := s.replaceLayout(loc, m, layout); err != nil {
			return err
		}
		newProgress(t.Progress, 1).add(1)
		return nil

	case core.LayoutContiguous:
		if m.size == 0 {
			return nil
		}
		addr := m.layout.Address
		if utils.IsUndefined(addr, s.sb.Sizes.Offset) {
			if addr, err = s.fw.Allocate(m.size); err != nil {
				return err
			}
			if err := s.replaceLayout(loc, m, core.NewContiguousLayout(addr, m.size)); err != nil {
				return err
			}
		}
		if err := s.fw.WriteAtAddress(data, addr); err != nil {
			return err
		}
		newProgress(t.Progress, 1).add(1)
		return nil

	case core.LayoutChunked:
		return s.writeChunked(ctx, loc, m, data, t)
	}
	return utils.Unsupportedf("writing %s layout", m.layout.Class)
}

func (s *store) replaceLayout(loc location, m *datasetMeta, layout *core.DataLayoutMessage) error {
	encoded, err := layout.Encode(s.sb.Sizes)
	if err != nil {
		return err
	}
	m.h.Replace(core.MsgDataLayout, encoded)
	return s.commit(loc.path, m.h)
}
