package native

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/structures"
	"github.com/scigolib/h5store/internal/utils"
	"github.com/scigolib/h5store/internal/writer"
)

// noLock keeps tests independent of the host's flock support.
var noLock = Options{DisableLocking: true}

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.h5")
}

func createFile(t *testing.T) (*File, string) {
	t.Helper()
	path := tempPath(t)
	f, err := Create(path, CreateTruncate, noLock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, path
}

func rootGroup(t *testing.T, f *File) *Group {
	t.Helper()
	g, err := f.Root()
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

// encodeV1Header lays out a version 1 object header: a 16-byte prefix and
// 8-byte aligned messages.
func encodeV1Header(msgs ...*core.HeaderMessage) []byte {
	var body []byte
	for _, m := range msgs {
		size := (len(m.Data) + 7) &^ 7
		b := make([]byte, 8+size)
		binary.LittleEndian.PutUint16(b[0:], uint16(m.Type))
		binary.LittleEndian.PutUint16(b[2:], uint16(size))
		b[4] = m.Flags
		copy(b[8:], m.Data)
		body = append(body, b...)
	}
	prefix := make([]byte, 16)
	prefix[0] = 1
	binary.LittleEndian.PutUint16(prefix[2:], uint16(len(msgs)))
	binary.LittleEndian.PutUint32(prefix[4:], 1)
	binary.LittleEndian.PutUint32(prefix[8:], uint32(len(body)))
	return append(prefix, body...)
}

func symbolTableMessage(btree, heap uint64) []byte {
	b := utils.NewBuilder(utils.DefaultSizes, 16)
	b.Offset(btree)
	b.Offset(heap)
	return b.Result()
}

// writeLegacyFile writes a version 0 superblock file whose root group is
// an old-style symbol table group holding empty child groups.
func writeLegacyFile(t *testing.T, path string, children ...string) {
	t.Helper()
	sizes := utils.DefaultSizes
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	sb := &core.Superblock{
		Version:        core.Version0,
		Sizes:          sizes,
		GroupLeafK:     core.DefaultGroupLeafK,
		GroupInternalK: core.DefaultGroupInternalK,
		FreeSpace:      utils.UndefinedAddress,
		DriverInfo:     utils.UndefinedAddress,
	}
	fw := writer.NewFileWriter(f, 0, sb.EncodedSize())

	group := func(symbols []structures.Symbol) (addr, btree, heap uint64) {
		btree, heap, err := structures.WriteSymbolTable(fw, fw, sizes, symbols, core.DefaultGroupLeafK, core.DefaultGroupInternalK)
		require.NoError(t, err)
		hdr := encodeV1Header(&core.HeaderMessage{Type: core.MsgSymbolTable, Data: symbolTableMessage(btree, heap)})
		addr, err = fw.Append(hdr)
		require.NoError(t, err)
		return addr, btree, heap
	}

	var symbols []structures.Symbol
	for _, name := range children {
		addr, _, _ := group(nil)
		symbols = append(symbols, structures.Symbol{Name: name, Address: addr})
	}
	root, btree, heap := group(symbols)

	sb.RootGroup = root
	sb.RootCacheType = 1
	binary.LittleEndian.PutUint64(sb.RootScratch[0:], btree)
	binary.LittleEndian.PutUint64(sb.RootScratch[8:], heap)
	sb.EOFAddress = fw.EndOfFile()
	buf, err := sb.Encode()
	require.NoError(t, err)
	_, err = f.WriteAt(buf, 0)
	require.NoError(t, err)
	require.NoError(t, fw.Extend())
}

func float64Type() *core.DatatypeMessage { return core.NewFloatingPoint(8) }

func int32Type() *core.DatatypeMessage { return core.NewFixedPoint(4, true) }

// sequence returns n little-endian int32 values 0..n-1.
func sequence(n int) []byte {
	out := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(i))
	}
	return out
}

// scalarAttribute is a scalar int32 attribute holding v.
func scalarAttribute(name string, v int32) *core.Attribute {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, uint32(v))
	return &core.Attribute{Name: name, Datatype: int32Type(), Dataspace: core.NewDataspace(nil), Data: data}
}
