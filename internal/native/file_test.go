package native

import (
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5store/internal/core"
)

func TestCreateAndReopen(t *testing.T) {
	path := tempPath(t)
	f, err := Create(path, CreateTruncate, noLock)
	require.NoError(t, err)
	assert.True(t, f.Writable())
	assert.Equal(t, ReadWrite, f.Mode())
	assert.Equal(t, uint8(core.Version2), f.SuperblockVersion())

	root, err := f.Root()
	require.NoError(t, err)
	g, err := root.CreateGroup("data")
	require.NoError(t, err)
	require.NoError(t, g.Close())
	require.NoError(t, root.Close())
	require.NoError(t, f.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)

	f, err = Open(path, ReadOnly, noLock)
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, f.Writable())
	assert.Equal(t, uint64(st.Size()), f.Size())

	info, err := f.Stat("/data")
	require.NoError(t, err)
	assert.Equal(t, "/data", info.Path)
	assert.Equal(t, core.ObjectTypeGroup, info.Kind)
}

func TestCreateExclusive(t *testing.T) {
	path := tempPath(t)
	require.NoError(t, os.WriteFile(path, []byte("occupied"), 0o600))

	_, err := Create(path, CreateExclusive, noLock)
	require.ErrorIs(t, err, ErrExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "occupied", string(data), "exclusive create must not touch the file")

	f, err := Create(path, CreateTruncate, noLock)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestOpenErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := Open(tempPath(t), ReadOnly, noLock)
		require.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("not hdf5", func(t *testing.T) {
		path := tempPath(t)
		require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0o600))
		before := OpenFiles()
		_, err := Open(path, ReadOnly, noLock)
		require.ErrorIs(t, err, ErrCorrupt)
		assert.Equal(t, before, OpenFiles(), "a failed open registers nothing")
	})

	t.Run("empty", func(t *testing.T) {
		path := tempPath(t)
		require.NoError(t, os.WriteFile(path, nil, 0o600))
		_, err := Open(path, ReadWrite, noLock)
		require.Error(t, err)
	})
}

func TestSharedOpeners(t *testing.T) {
	a, path := createFile(t)
	before := OpenFiles()

	b, err := Open(path, ReadWrite, noLock)
	require.NoError(t, err)
	assert.Equal(t, before, OpenFiles(), "a second open shares the first")
	assert.Equal(t, 2, a.Openers())
	assert.Equal(t, 2, b.Openers())

	ro, err := Open(path, ReadOnly, noLock)
	require.NoError(t, err)
	assert.False(t, ro.Writable(), "a read-only opener of a writable file stays read-only")
	require.NoError(t, ro.Close())

	root := rootGroup(t, a)
	g, err := root.CreateGroup("shared")
	require.NoError(t, err)
	require.NoError(t, g.Close())

	_, err = b.Stat("/shared")
	require.NoError(t, err, "openers see each other's changes")

	require.NoError(t, a.Close())
	assert.Equal(t, 1, b.Openers())
	_, err = b.Stat("/shared")
	require.NoError(t, err)
	require.NoError(t, b.Close())
	assert.Equal(t, before-1, OpenFiles())
}

func TestOpenConflicts(t *testing.T) {
	f, path := createFile(t)
	require.NoError(t, f.Close())

	ro, err := Open(path, ReadOnly, noLock)
	require.NoError(t, err)
	defer ro.Close()

	_, err = Open(path, ReadWrite, noLock)
	require.ErrorIs(t, err, ErrLocked)

	_, err = Create(path, CreateTruncate, noLock)
	require.ErrorIs(t, err, ErrLocked)

	_, err = Create(path, CreateExclusive, noLock)
	require.ErrorIs(t, err, ErrExists)

	again, err := Open(path, ReadOnly, noLock)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	f, path := createFile(t)
	require.NoError(t, f.Close())

	f, err := Open(path, ReadOnly, noLock)
	require.NoError(t, err)
	defer f.Close()

	root := rootGroup(t, f)
	_, err = root.CreateGroup("x")
	require.ErrorIs(t, err, ErrReadOnly)
	require.ErrorIs(t, root.Unlink("x"), ErrReadOnly)
	require.ErrorIs(t, root.CreateAttribute(scalarAttribute("a", 7)), ErrReadOnly)
	require.NoError(t, f.Flush(), "flushing a read-only file is a no-op")
}

func TestHandleAccounting(t *testing.T) {
	f, _ := createFile(t)

	root, err := f.Root()
	require.NoError(t, err)
	g, err := root.CreateGroup("g")
	require.NoError(t, err)
	assert.Equal(t, 2, f.OpenHandles())

	require.NoError(t, g.Close())
	require.NoError(t, g.Close(), "closing twice is a no-op")
	assert.Equal(t, 1, f.OpenHandles())

	_, err = g.Links()
	require.ErrorIs(t, err, ErrClosed)

	assert.Equal(t, 1, f.CloseHandles())
	assert.Zero(t, f.OpenHandles())
	_, err = root.Links()
	require.ErrorIs(t, err, ErrClosed)
}

func TestCloseInvalidatesFile(t *testing.T) {
	f, _ := createFile(t)
	root, err := f.Root()
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = root.Links()
	require.ErrorIs(t, err, ErrClosed)
	_, err = f.Root()
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, f.Flush(), ErrClosed)
}

func TestFlushPersistsEOF(t *testing.T) {
	f, path := createFile(t)
	root := rootGroup(t, f)
	for _, name := range []string{"a", "b", "c"} {
		g, err := root.CreateGroup(name)
		require.NoError(t, err)
		require.NoError(t, g.Close())
	}
	require.NoError(t, f.Flush())

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, f.Size(), uint64(st.Size()))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "read-only", ReadOnly.String())
	assert.Equal(t, "read-write", ReadWrite.String())
}
