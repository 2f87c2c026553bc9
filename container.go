package h5store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/scigolib/h5store/internal/native"
)

// Mode selects how Open treats the named file.
type Mode int

// Open modes.
const (
	// ReadOnly opens an existing container for reading.
	ReadOnly Mode = iota

	// Write opens an existing container for reading and writing.
	Write

	// Replace creates an empty container, truncating an existing one.
	// A file that exists but is not a container is left alone.
	Replace

	// New creates an empty container and fails if the file exists.
	New

	// WriteOrNew opens an existing container for writing or creates it.
	WriteOrNew
)

var modeNames = [...]string{
	ReadOnly:   "read-only",
	Write:      "write",
	Replace:    "replace",
	New:        "new",
	WriteOrNew: "write-or-new",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Container is an open HDF5 file. Objects inside it are addressed by
// "/"-separated paths relative to the root group; "" and "/" both name
// the root.
//
// A Container is not safe for concurrent use. Group, dataset and
// attribute handles are opened and closed within each call.
type Container struct {
	f    *native.File
	name string
	mode Mode
	cfg  config
	log  *Logger
}

// Open opens or creates the container file name.
//
//	mode        missing file     invalid file        refused access
//	ReadOnly    ErrNotFound      ErrMalformed        falls back to read-write
//	Write       ErrNotFound      ErrMalformed        ErrLockConflict or ErrPermissionDenied
//	Replace     created          ErrPermissionDenied ErrLockConflict
//	New         created          ErrAlreadyExists    ErrAlreadyExists
//	WriteOrNew  created          ErrMalformed        as Write
//
// To tell a lock conflict from a permission problem Open probes the file
// a second time with read-only access. Another process can change the
// file between the two attempts, so the diagnosis is best effort.
func Open(name string, mode Mode, opts ...Option) (*Container, error) {
	cfg := newConfig(opts)
	c := &Container{name: name, mode: mode, cfg: cfg, log: cfg.logger.WithContainer(name, mode)}

	var err error
	switch mode {
	case ReadOnly:
		c.f, err = c.openReadOnly()
	case Write:
		c.f, err = c.openWrite()
	case Replace:
		c.f, err = c.replace()
	case New:
		c.f, err = c.create()
	case WriteOrNew:
		if _, statErr := os.Stat(name); errors.Is(statErr, fs.ErrNotExist) {
			c.f, err = c.create()
		} else {
			c.f, err = c.openWrite()
		}
	default:
		return nil, fail("open", name, ErrMalformed, "unknown mode %s", mode)
	}
	if err != nil {
		return nil, err
	}
	c.log.Debug("container opened", "writable", c.Writable(), "openers", c.f.Openers())
	return c, nil
}

// openNative opens an existing file in the engine. Tests replace it to
// make the engine refuse an access mode.
var openNative = native.Open

func (c *Container) nativeOptions() native.Options {
	return native.Options{DisableLocking: c.cfg.disableLocking}
}

// openReadOnly falls back to read-write access when read-only access is
// refused. With the engine's own locks both modes are normally refused
// together; the fallback serves engines that lock read-only openers out.
func (c *Container) openReadOnly() (*native.File, error) {
	f, err := openNative(c.name, native.ReadOnly, c.nativeOptions())
	if err == nil {
		return f, nil
	}
	if errors.Is(err, native.ErrLocked) || errors.Is(err, fs.ErrPermission) {
		if rw, rwErr := openNative(c.name, native.ReadWrite, c.nativeOptions()); rwErr == nil {
			c.log.LogFallback(context.Background(), err)
			return rw, nil
		}
	}
	return nil, wrap("open", c.name, err)
}

func (c *Container) openWrite() (*native.File, error) {
	f, err := openNative(c.name, native.ReadWrite, c.nativeOptions())
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, native.ErrCorrupt):
		return nil, wrap("open", c.name, err)
	}
	return nil, c.diagnose(err)
}

// diagnose classifies a refused read-write open by probing the file
// read-only: readable means another opener holds it, unless the file
// system itself refused write access.
func (c *Container) diagnose(err error) error {
	kind := classify(err)
	probe, perr := openNative(c.name, native.ReadOnly, c.nativeOptions())
	switch {
	case perr == nil:
		_ = probe.Close()
		kind = ErrLockConflict
		if errors.Is(err, fs.ErrPermission) {
			kind = ErrPermissionDenied
		}
	case errors.Is(perr, fs.ErrPermission):
		kind = ErrPermissionDenied
	case errors.Is(perr, native.ErrLocked):
		kind = ErrLockConflict
	}
	return &Error{Op: "open", Path: c.name, Kind: kind, Err: err}
}

func (c *Container) replace() (*native.File, error) {
	if _, err := os.Stat(c.name); err == nil {
		probe, perr := openNative(c.name, native.ReadOnly, c.nativeOptions())
		if perr == nil {
			_ = probe.Close()
		} else if errors.Is(perr, native.ErrCorrupt) {
			return nil, &Error{Op: "open", Path: c.name, Kind: ErrPermissionDenied,
				Err: fmt.Errorf("refusing to replace a file that is not a container: %w", perr)}
		}
	}
	f, err := native.Create(c.name, native.CreateTruncate, c.nativeOptions())
	if err != nil {
		return nil, wrap("create", c.name, err)
	}
	return f, nil
}

func (c *Container) create() (*native.File, error) {
	f, err := native.Create(c.name, native.CreateExclusive, c.nativeOptions())
	if err != nil {
		return nil, wrap("create", c.name, err)
	}
	return f, nil
}

// Close releases the file. Handles still open through this Container
// are closed with a warning. If other Containers in this process have
// the same file open it stays open until they close too. Closing a
// closed Container is a no-op.
func (c *Container) Close() error {
	if c == nil || c.f == nil {
		return nil
	}
	f := c.f
	c.f = nil
	ctx := context.Background()
	if n := f.OpenHandles(); n > 0 {
		c.log.LogLeakedHandles(ctx, n)
		f.CloseHandles()
	}
	if others := f.Openers() - 1; others > 0 {
		c.log.LogSharedClose(ctx, others)
	}
	return wrap("close", c.name, f.Close())
}

// Name returns the file name the Container was opened with.
func (c *Container) Name() string { return c.name }

// Mode returns the mode the Container was opened with.
func (c *Container) Mode() Mode { return c.mode }

// IsOpen reports whether the Container can be used.
func (c *Container) IsOpen() bool { return c != nil && c.f != nil }

// Writable reports whether the Container accepts modifications. A
// ReadOnly Container never does, even after a read-write fallback.
func (c *Container) Writable() bool {
	return c.IsOpen() && c.mode != ReadOnly && c.f.Writable()
}

// Flush writes pending file metadata to disk.
func (c *Container) Flush() error {
	f, err := c.file("flush", c.name)
	if err != nil {
		return err
	}
	return wrap("flush", c.name, f.Flush())
}

// file returns the native file or ErrContainerNotOpen.
func (c *Container) file(op, path string) (*native.File, error) {
	if !c.IsOpen() {
		name := path
		if c != nil && name == "" {
			name = c.name
		}
		return nil, &Error{Op: op, Path: name, Kind: ErrContainerNotOpen}
	}
	return c.f, nil
}

// writable returns the native file if the Container accepts writes.
func (c *Container) writable(op, path string) (*native.File, error) {
	f, err := c.file(op, path)
	if err != nil {
		return nil, err
	}
	if !c.Writable() {
		return nil, &Error{Op: op, Path: path, Kind: ErrPermissionDenied,
			Err: fmt.Errorf("%s is open %s: %w", c.name, c.mode, native.ErrReadOnly)}
	}
	return f, nil
}
