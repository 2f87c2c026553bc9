package h5store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.h5")
}

// newContainer creates a fresh container closed at cleanup.
func newContainer(t *testing.T, opts ...Option) (*Container, string) {
	t.Helper()
	path := tempFile(t)
	c, err := Open(path, New, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func openContainer(t *testing.T, path string, mode Mode, opts ...Option) *Container {
	t.Helper()
	c, err := Open(path, mode, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func writeInvalid(t *testing.T, path string) []byte {
	t.Helper()
	content := []byte("this file is not a container, just some text\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return content
}

// recorder is a slog.Handler keeping every record.
type recorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *recorder) WithGroup(string) slog.Handler      { return r }

// warnings returns the messages of the Warn records.
func (r *recorder) warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rec := range r.records {
		if rec.Level == slog.LevelWarn {
			out = append(out, rec.Message)
		}
	}
	return out
}

// attr returns the value of key in the last record carrying it.
func (r *recorder) attr(key string) slog.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	var v slog.Value
	for _, rec := range r.records {
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == key {
				v = a.Value
			}
			return true
		})
	}
	return v
}

// stopAfter is a Progress that asks to stop once Cancelled has been
// polled more than limit times.
type stopAfter struct {
	mu      sync.Mutex
	limit   int
	polls   int
	updates []float64
}

func (s *stopAfter) Update(f float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, f)
}

func (s *stopAfter) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	return s.limit >= 0 && s.polls > s.limit
}

// ramp returns a float64 array of shape counting up from 0.
func ramp(shape ...uint64) *Array[float64] {
	a := NewArray[float64](shape...)
	for i := range a.Data() {
		a.Data()[i] = float64(i)
	}
	return a
}

func slogFor(h slog.Handler) *slog.Logger { return slog.New(h) }
