package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5store/internal/utils"
)

func TestDataspace_Encode(t *testing.T) {
	tests := []struct {
		name  string
		dims  []uint64
		typ   DataspaceType
		count uint64
	}{
		{"scalar", nil, DataspaceScalar, 1},
		{"vector", []uint64{7}, DataspaceSimple, 7},
		{"volume", []uint64{4, 5, 6}, DataspaceSimple, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := ParseDataspaceMessage(NewDataspace(tt.dims).Encode(utils.DefaultSizes), utils.DefaultSizes)
			require.NoError(t, err)
			require.Equal(t, tt.typ, ds.Type)
			require.Equal(t, len(tt.dims), len(ds.Dimensions))
			n, err := ds.ElementCount()
			require.NoError(t, err)
			require.Equal(t, tt.count, n)
		})
	}
}

func TestDataspace_Version1(t *testing.T) {
	b := utils.NewBuilder(utils.DefaultSizes, 32)
	b.U8(1)
	b.U8(2)
	b.U8(1)
	b.Zeros(5)
	b.Length(3)
	b.Length(4)
	b.Length(utils.UndefinedAddress)
	b.Length(4)

	ds, err := ParseDataspaceMessage(b.Result(), utils.DefaultSizes)
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 4}, ds.Dimensions)
	require.Equal(t, []uint64{utils.UndefinedAddress, 4}, ds.MaxDims)
}

func TestDatatype_Constructors(t *testing.T) {
	tests := []struct {
		name   string
		dt     *DatatypeMessage
		class  DatatypeClass
		size   uint32
		signed bool
		str    string
	}{
		{"int8", NewFixedPoint(1, true), DatatypeFixed, 1, true, "int8le"},
		{"uint16", NewFixedPoint(2, false), DatatypeFixed, 2, false, "uint16le"},
		{"float32", NewFloatingPoint(4), DatatypeFloat, 4, false, "float32le"},
		{"float64", NewFloatingPoint(8), DatatypeFloat, 8, false, "float64le"},
		{"string", NewFixedString(11, PadNullPad, CharsetUTF8), DatatypeString, 11, false, "string[11]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDatatypeMessage(tt.dt.Encode())
			require.NoError(t, err)
			require.Equal(t, tt.class, got.Class)
			require.Equal(t, tt.size, got.Size)
			require.Equal(t, tt.signed, got.Signed())
			require.False(t, got.BigEndian())
			require.Equal(t, tt.str, got.String())
			require.True(t, got.Equal(tt.dt))
		})
	}
}

func TestDatatype_IEEEFloatBits(t *testing.T) {
	// H5T_IEEE_F64LE as written by libhdf5.
	raw := []byte{0x11, 0x20, 0x3f, 0x00, 0x08, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x40, 0x00, 0x34, 0x0b, 0x00, 0x34, 0xff, 0x03, 0x00, 0x00}
	dt, err := ParseDatatypeMessage(raw)
	require.NoError(t, err)
	require.True(t, dt.IsIEEE())
	require.Equal(t, raw, NewFloatingPoint(8).Encode())
}

func TestDatatype_VarLenString(t *testing.T) {
	raw := []byte{0x19, 0x01, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00,
		0x13, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x08, 0x00}
	dt, err := ParseDatatypeMessage(raw)
	require.NoError(t, err)
	require.True(t, dt.IsVarLen())
	require.True(t, dt.IsVarString())
	require.Equal(t, "vlen-string", dt.String())
}

func TestDataLayout_Encode(t *testing.T) {
	sizes := utils.DefaultSizes

	compact, err := NewCompactLayout([]byte{1, 2, 3}).Encode(sizes)
	require.NoError(t, err)
	got, err := ParseDataLayoutMessage(compact, sizes)
	require.NoError(t, err)
	require.Equal(t, LayoutCompact, got.Class)
	require.Equal(t, []byte{1, 2, 3}, got.CompactData)

	contiguous, err := NewContiguousLayout(4096, 480).Encode(sizes)
	require.NoError(t, err)
	got, err = ParseDataLayoutMessage(contiguous, sizes)
	require.NoError(t, err)
	require.Equal(t, uint64(4096), got.Address)
	require.Equal(t, uint64(480), got.Size)

	chunked, err := NewChunkedLayout(utils.UndefinedAddress, []uint64{1, 5, 6}, 4).Encode(sizes)
	require.NoError(t, err)
	got, err = ParseDataLayoutMessage(chunked, sizes)
	require.NoError(t, err)
	require.Equal(t, LayoutChunked, got.Class)
	require.Equal(t, IndexBTreeV1, got.IndexType)
	require.Equal(t, []uint64{1, 5, 6}, got.ChunkDims)
	require.Equal(t, uint32(4), got.ElementSize)
	require.Equal(t, utils.UndefinedAddress, got.Address)
}

func TestDataLayout_Version4FixedArray(t *testing.T) {
	b := utils.NewBuilder(utils.DefaultSizes, 32)
	b.U8(4)
	b.U8(uint8(LayoutChunked))
	b.U8(0)
	b.U8(3)
	b.U8(2)
	b.U16(10)
	b.U16(20)
	b.U16(8)
	b.U8(uint8(IndexFixedArray))
	b.U8(10)
	b.Offset(777)

	dl, err := ParseDataLayoutMessage(b.Result(), utils.DefaultSizes)
	require.NoError(t, err)
	require.Equal(t, IndexFixedArray, dl.IndexType)
	require.Equal(t, []uint64{10, 20}, dl.ChunkDims)
	require.Equal(t, uint32(8), dl.ElementSize)
	require.Equal(t, uint8(10), dl.FixedArrayPageBits)
	require.Equal(t, uint64(777), dl.Address)

	_, err = dl.Encode(utils.DefaultSizes)
	require.ErrorIs(t, err, utils.ErrUnsupported)
}

func TestFilterPipeline_Encode(t *testing.T) {
	fp := &FilterPipelineMessage{Filters: []FilterInfo{
		{ID: FilterShuffle, ClientData: []uint32{4}},
		{ID: FilterDeflate, ClientData: []uint32{6}},
		{ID: FilterZstd, Name: "zstd", Flags: FilterOptional, ClientData: []uint32{3}},
	}}

	got, err := ParseFilterPipelineMessage(fp.Encode())
	require.NoError(t, err)
	require.Len(t, got.Filters, 3)
	require.Equal(t, FilterShuffle, got.Filters[0].ID)
	require.Equal(t, []uint32{6}, got.Filters[1].ClientData)
	require.Equal(t, "zstd", got.Filters[2].Name)
	require.Equal(t, FilterOptional, got.Filters[2].Flags)
}

func TestFilterPipeline_Version1(t *testing.T) {
	b := utils.NewBuilder(utils.DefaultSizes, 32)
	b.U8(1)
	b.U8(1)
	b.Zeros(6)
	b.U16(FilterDeflate)
	b.U16(8)
	b.U16(0)
	b.U16(1)
	b.Bytes([]byte("deflate\x00"))
	b.U32(9)
	b.Zeros(4)

	fp, err := ParseFilterPipelineMessage(b.Result())
	require.NoError(t, err)
	require.Len(t, fp.Filters, 1)
	require.Equal(t, "deflate", fp.Filters[0].Name)
	require.Equal(t, []uint32{9}, fp.Filters[0].ClientData)
}

func TestAttribute_Encode(t *testing.T) {
	attr := &Attribute{
		Name:      "element_size_um",
		Datatype:  NewFloatingPoint(4),
		Dataspace: NewDataspace([]uint64{3}),
		Data:      make([]byte, 12),
	}
	got, err := ParseAttributeMessage(attr.Encode(utils.DefaultSizes), utils.DefaultSizes)
	require.NoError(t, err)
	require.Equal(t, "element_size_um", got.Name)
	require.True(t, got.Datatype.Equal(attr.Datatype))
	require.Equal(t, []uint64{3}, got.Dataspace.Dimensions)
	require.Len(t, got.Data, 12)
}

func TestAttribute_Version1Padding(t *testing.T) {
	dt := NewFixedPoint(4, true).Encode()
	ds := NewDataspace(nil).Encode(utils.DefaultSizes)
	pad := func(b []byte) []byte { return append(b, make([]byte, (8-len(b)%8)%8)...) }

	b := utils.NewBuilder(utils.DefaultSizes, 64)
	b.U8(1)
	b.U8(0)
	b.U16(3)
	b.U16(uint16(len(dt)))
	b.U16(uint16(len(ds)))
	b.Bytes(pad([]byte("ab\x00")))
	b.Bytes(pad(dt))
	b.Bytes(pad(ds))
	b.U32(42)

	got, err := ParseAttributeMessage(b.Result(), utils.DefaultSizes)
	require.NoError(t, err)
	require.Equal(t, "ab", got.Name)
	require.Equal(t, DataspaceScalar, got.Dataspace.Type)
	require.Equal(t, []byte{42, 0, 0, 0}, got.Data)
}

func TestLinkMessage_Encode(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	tests := []*LinkMessage{
		NewHardLink("volume", 4096),
		NewHardLink(string(long), 8),
		{Name: "alias", Type: LinkSoft, Target: []byte("/data/volume")},
		{Name: "ordered", Type: LinkHard, Address: 99, HasOrder: true, CreationOrder: 5},
	}

	for _, l := range tests {
		t.Run(l.Type.String(), func(t *testing.T) {
			got, err := ParseLinkMessage(l.Encode(utils.DefaultSizes), utils.DefaultSizes)
			require.NoError(t, err)
			require.Equal(t, l.Name, got.Name)
			require.Equal(t, l.Type, got.Type)
			require.Equal(t, l.Address, got.Address)
			require.Equal(t, l.Target, got.Target)
			require.Equal(t, l.CreationOrder, got.CreationOrder)
		})
	}
}

func TestLinkInfo_Dense(t *testing.T) {
	li, err := ParseLinkInfoMessage(NewLinkInfo().Encode(utils.DefaultSizes), utils.DefaultSizes)
	require.NoError(t, err)
	require.False(t, li.Dense())

	dense := NewLinkInfo()
	dense.FractalHeap = 1024
	li, err = ParseLinkInfoMessage(dense.Encode(utils.DefaultSizes), utils.DefaultSizes)
	require.NoError(t, err)
	require.True(t, li.Dense())
}

func TestFillValue_Encode(t *testing.T) {
	fv := &FillValueMessage{AllocTime: AllocIncremental, FillTime: 2, Defined: true, Value: []byte{0, 0, 0x80, 0x7f}}
	got, err := ParseFillValueMessage(fv.Encode())
	require.NoError(t, err)
	require.Equal(t, fv, got)

	empty := &FillValueMessage{AllocTime: AllocLate, FillTime: 2}
	got, err = ParseFillValueMessage(empty.Encode())
	require.NoError(t, err)
	require.False(t, got.Defined)
	require.Nil(t, got.Value)
}
