package main

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scigolib/h5store"
)

func newApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &app{cfg: defaultConfig(), log: slog.New(slog.DiscardHandler), out: out}, out
}

// fixture writes a small container and returns its path.
func fixture(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "scan.h5")
	c, err := h5store.Open(p, h5store.New)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	vol := h5store.NewArray[float32](4, 128, 64)
	for i := range vol.Data() {
		vol.Data()[i] = float32(i % 7)
	}
	require.NoError(t, h5store.WriteDataset(c, "/raw/volume", vol))
	require.NoError(t, h5store.WriteDataset(c, "/raw/ids", h5store.SliceOf([]int16{3, 1, 2, 4, 5, 6})))
	require.NoError(t, c.WriteText("/notes", "acquired on scanner B"))
	require.NoError(t, c.WriteTextAttribute("units", "/raw/volume", "HU"))
	require.NoError(t, c.CreateGroup("/empty"))
	return p
}

func TestLs(t *testing.T) {
	a, out := newApp(t)
	p := fixture(t)
	require.NoError(t, a.run(t.Context(), []string{"ls", p}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^/empty/\s+group\s+0 members`, lines[0])
	assert.Regexp(t, `^/notes\s+text\s+scalar`, lines[1])
	assert.Regexp(t, `^/raw/\s+group\s+2 members`, lines[2])

	out.Reset()
	require.NoError(t, a.run(t.Context(), []string{"ls", "-r", p, "raw"}))
	lines = strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^/raw/ids\s+int16\s+6\s+12 B$`, lines[0])
	assert.Regexp(t, `^/raw/volume\s+float32\s+4 x 128 x 64\s+128 KiB$`, lines[1])
}

func TestInfo(t *testing.T) {
	a, out := newApp(t)
	p := fixture(t)
	require.NoError(t, a.run(t.Context(), []string{"info", p, "/raw/volume"}))
	s := out.String()
	assert.Contains(t, s, "float32 (float32le)")
	assert.Regexp(t, `layout\s+chunked`, s)
	assert.Regexp(t, `chunks\s+1 x 128 x 64, btree-v1 index, 4 of 4 stored`, s)
	assert.Regexp(t, `attributes\s+units`, s)
	assert.NotContains(t, s, "filters")
}

func TestCat(t *testing.T) {
	a, out := newApp(t)
	p := fixture(t)
	require.NoError(t, a.run(t.Context(), []string{"cat", p, "/notes"}))
	assert.Equal(t, "acquired on scanner B\n", out.String())

	out.Reset()
	require.NoError(t, a.run(t.Context(), []string{"cat", p, "/raw/volume@units"}))
	assert.Equal(t, "HU\n", out.String())

	out.Reset()
	require.NoError(t, a.run(t.Context(), []string{"cat", p, "/raw/ids"}))
	assert.Equal(t, "3\n1\n2\n4\n5\n6\n", out.String())

	out.Reset()
	require.NoError(t, a.run(t.Context(), []string{"cat", "-n", "5", p, "/raw/volume"}))
	assert.Equal(t, "0 1 2 3 4 ... 32,763 more\n", out.String())
}

func TestCp(t *testing.T) {
	a, out := newApp(t)
	src := fixture(t)
	dst := filepath.Join(t.TempDir(), "archive.h5")

	require.NoError(t, a.run(t.Context(), []string{"cp", "-level", "4", "-shuffle", src, "/raw", dst, "/2024/raw"}))
	require.NoError(t, a.run(t.Context(), []string{"info", dst, "/2024/raw/volume"}))
	assert.Regexp(t, `filters\s+shuffle, deflate\(4\)`, out.String())

	out.Reset()
	require.NoError(t, a.run(t.Context(), []string{"cp", src, "/notes", src, "/copy/notes"}))
	require.NoError(t, a.run(t.Context(), []string{"cat", src, "/copy/notes"}))
	assert.Equal(t, "acquired on scanner B\n", out.String())

	err := a.run(t.Context(), []string{"cp", src, "/notes", src, "/copy/notes"})
	require.ErrorIs(t, err, h5store.ErrAlreadyExists)
}

func TestCpCancelled(t *testing.T) {
	a, _ := newApp(t)
	src := fixture(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := a.run(ctx, []string{"cp", src, "/raw", filepath.Join(t.TempDir(), "out.h5"), "/raw"})
	require.ErrorIs(t, err, h5store.ErrCancelled)
}

func TestRmAndMkdir(t *testing.T) {
	a, out := newApp(t)
	p := fixture(t)
	require.NoError(t, a.run(t.Context(), []string{"mkdir", p, "/a/b", "/c"}))
	require.NoError(t, a.run(t.Context(), []string{"rm", p, "/raw/volume@units", "/notes", "/raw", "/a"}))
	require.NoError(t, a.run(t.Context(), []string{"ls", p}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^/c/`, lines[0])
	assert.Regexp(t, `^/empty/`, lines[1])

	require.ErrorIs(t, a.run(t.Context(), []string{"rm", p, "/raw"}), h5store.ErrNotFound)
}

func TestUsage(t *testing.T) {
	a, _ := newApp(t)
	for _, args := range [][]string{
		nil,
		{"frobnicate"},
		{"ls"},
		{"info", "x.h5"},
		{"cp", "-bogus", "a", "/", "b", "/"},
		{"cp", "-codec", "brotli", "a", "/x", "b", "/x"},
	} {
		require.ErrorIs(t, a.run(t.Context(), args), errUsage, "%q", args)
	}
	assert.Contains(t, usage(), "mkdir file group...")
}
