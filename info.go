package h5store

import (
	"fmt"

	"github.com/scigolib/h5store/internal/core"
)

// ObjectKind tells groups from datasets.
type ObjectKind int

// Object kinds.
const (
	KindOther ObjectKind = iota
	KindGroup
	KindDataset
)

func (k ObjectKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindDataset:
		return "dataset"
	}
	return "other"
}

// ObjectInfo describes a group or dataset.
type ObjectInfo struct {
	Path       string // canonical path, soft links resolved
	Kind       ObjectKind
	Attributes []string

	// Members counts the links of a group.
	Members int

	// Dataset fields.
	Shape        []uint64
	Type         DataType
	StoredType   string // stored type with byte order, such as "int32be"
	Layout       string
	ChunkIndex   string
	Chunks       []uint64
	Filters      []string
	DataBytes    uint64
	StoredBytes  uint64
	StoredChunks uint64
	TotalChunks  uint64
}

// Info describes the object at path. Chunked datasets walk their chunk
// index to count stored chunks and bytes.
func (c *Container) Info(path string) (*ObjectInfo, error) {
	const op = "info"
	f, err := c.file(op, path)
	if err != nil {
		return nil, err
	}
	p, err := absolute(op, path)
	if err != nil {
		return nil, err
	}
	o, err := f.OpenObject(p)
	if err != nil {
		return nil, wrap(op, p, err)
	}
	defer func() { _ = o.Close() }()
	info := &ObjectInfo{Path: o.Path()}
	if info.Attributes, err = o.AttributeNames(); err != nil {
		return nil, wrap(op, p, err)
	}

	switch o.Kind() {
	case core.ObjectTypeGroup:
		info.Kind = KindGroup
		g, err := f.OpenGroup(p)
		if err != nil {
			return nil, wrap(op, p, err)
		}
		defer func() { _ = g.Close() }()
		links, err := g.Links()
		if err != nil {
			return nil, wrap(op, p, err)
		}
		info.Members = len(links)

	case core.ObjectTypeDataset:
		info.Kind = KindDataset
		ds, err := f.OpenDataset(p)
		if err != nil {
			return nil, wrap(op, p, err)
		}
		defer func() { _ = ds.Close() }()
		di, err := ds.Info()
		if err != nil {
			return nil, wrap(op, p, err)
		}
		info.Shape = append([]uint64{}, di.Dims...)
		info.Type = nativeType(di.Type)
		info.StoredType = di.Type.String()
		info.Layout = di.Layout.String()
		info.DataBytes = di.DataBytes
		info.StoredBytes = di.StoredBytes
		if di.Layout == core.LayoutChunked {
			info.Chunks = append([]uint64(nil), di.ChunkDims...)
			info.ChunkIndex = indexName(di.ChunkIndex)
			info.StoredChunks = di.StoredChunks
			info.TotalChunks = di.TotalChunks
		}
		for _, fi := range di.Filters {
			info.Filters = append(info.Filters, filterName(fi))
		}
	}
	return info, nil
}

func indexName(t core.ChunkIndexType) string {
	switch t {
	case core.IndexBTreeV1:
		return "btree-v1"
	case core.IndexSingleChunk:
		return "single-chunk"
	case core.IndexImplicit:
		return "implicit"
	case core.IndexFixedArray:
		return "fixed-array"
	case core.IndexExtArray:
		return "extensible-array"
	case core.IndexBTreeV2:
		return "btree-v2"
	}
	return fmt.Sprintf("index-%d", uint8(t))
}

func filterName(fi core.FilterInfo) string {
	switch fi.ID {
	case core.FilterDeflate:
		if len(fi.ClientData) > 0 {
			return fmt.Sprintf("deflate(%d)", fi.ClientData[0])
		}
		return "deflate"
	case core.FilterShuffle:
		return "shuffle"
	case core.FilterFletcher32:
		return "fletcher32"
	case core.FilterSZIP:
		return "szip"
	case core.FilterNBit:
		return "nbit"
	case core.FilterScaleOff:
		return "scaleoffset"
	case core.FilterLZ4:
		return "lz4"
	case core.FilterZstd:
		if len(fi.ClientData) > 0 {
			return fmt.Sprintf("zstd(%d)", fi.ClientData[0])
		}
		return "zstd"
	}
	if fi.Name != "" {
		return fi.Name
	}
	return fmt.Sprintf("filter-%d", fi.ID)
}
