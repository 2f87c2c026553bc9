// Package native is the HDF5 storage engine behind h5store: it opens and
// creates files, resolves paths to object headers, and reads and writes
// groups, datasets and attributes on top of internal/core,
// internal/structures and internal/writer.
//
// A File is one opener's view of a file. Opening a file that is already
// open in the process shares the underlying state, so every opener sees
// the others' changes. Group, Dataset and Attribute values are handles:
// each is counted against the File that opened it until closed.
//
// A File and its handles are not safe for concurrent use.
package native

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/utils"
	"github.com/scigolib/h5store/internal/writer"
)

// Mode selects the access an existing file is opened with.
type Mode int

// Access modes.
const (
	ReadOnly Mode = iota
	ReadWrite
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

// CreateMode specifies how Create treats an existing file.
type CreateMode int

const (
	// CreateTruncate replaces an existing file.
	CreateTruncate CreateMode = iota

	// CreateExclusive fails with ErrExists if the file exists.
	CreateExclusive
)

// Options tune how files are opened.
type Options struct {
	// DisableLocking skips the advisory lock. Setting the environment
	// variable HDF5_USE_FILE_LOCKING to FALSE has the same effect.
	DisableLocking bool
}

func (o Options) locking() bool {
	if o.DisableLocking {
		return false
	}
	return !strings.EqualFold(os.Getenv("HDF5_USE_FILE_LOCKING"), "FALSE")
}

// store is the state every File opened on the same file shares.
type store struct {
	path     string
	info     os.FileInfo
	osFile   *os.File
	fw       *writer.FileWriter
	sb       *core.Superblock
	writable bool
	locked   bool

	mu      sync.Mutex
	openers map[*File]struct{}
}

// File is one opener's handle on an HDF5 file.
type File struct {
	s       *store
	mode    Mode
	handles map[*handle]struct{}
	closed  bool
}

// Open opens an existing HDF5 file. Opening a file this process already
// has open shares it; asking for write access to a file shared read-only
// fails with ErrLocked.
func Open(path string, mode Mode, opts Options) (*File, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if s := lookupStore(info); s != nil {
		if mode == ReadWrite && !s.writable {
			return nil, fmt.Errorf("%s is open read-only in this process: %w", path, ErrLocked)
		}
		return s.attach(mode), nil
	}

	s, err := openStore(path, mode == ReadWrite, opts)
	if err != nil {
		return nil, err
	}
	registerStore(s)
	return s.attach(mode), nil
}

func openStore(path string, writable bool, opts Options) (*store, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	//nolint:gosec // G304: opening caller-named files is the point of this package
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	s := &store{path: path, osFile: f, writable: writable, openers: make(map[*File]struct{})}
	if err := s.init(opts); err != nil {
		_ = s.release()
		return nil, err
	}
	return s, nil
}

func (s *store) init(opts Options) error {
	if opts.locking() {
		if err := lockFile(s.osFile, s.writable); err != nil {
			return fmt.Errorf("%s: %w", s.path, err)
		}
		s.locked = true
	}
	info, err := s.osFile.Stat()
	if err != nil {
		return err
	}
	s.info = info

	sb, err := core.FindSuperblock(s.osFile, info.Size())
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	if utils.IsUndefined(sb.RootGroup, sb.Sizes.Offset) {
		return fmt.Errorf("%s: %w", s.path, utils.Corruptf("superblock has no root group"))
	}
	s.sb = sb

	eof := sb.EOFAddress
	//nolint:gosec // G115: file sizes are non-negative
	if size := uint64(info.Size()); size > sb.BaseAddress && size-sb.BaseAddress > eof {
		eof = size - sb.BaseAddress
	}
	s.fw = writer.NewFileWriter(s.osFile, sb.BaseAddress, eof)
	return nil
}

// Create creates a new, empty HDF5 file holding only the root group.
// Truncating a file this process has open fails with ErrLocked.
func Create(path string, mode CreateMode, opts Options) (*File, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if s := lookupPath(path); s != nil {
		if mode == CreateExclusive {
			return nil, fmt.Errorf("%s: %w", path, ErrExists)
		}
		return nil, fmt.Errorf("%s is open in this process: %w", path, ErrLocked)
	}

	flag := os.O_RDWR | os.O_CREATE
	if mode == CreateExclusive {
		flag |= os.O_EXCL
	}
	//nolint:gosec // G304: opening caller-named files is the point of this package
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %w", ErrExists, err)
		}
		return nil, err
	}

	s := &store{path: path, osFile: f, writable: true, openers: make(map[*File]struct{})}
	if err := s.format(opts); err != nil {
		_ = s.release()
		return nil, err
	}
	registerStore(s)
	return s.attach(ReadWrite), nil
}

// format locks, truncates and writes a fresh superblock and root group.
func (s *store) format(opts Options) error {
	if opts.locking() {
		if err := lockFile(s.osFile, true); err != nil {
			return fmt.Errorf("%s: %w", s.path, err)
		}
		s.locked = true
	}
	if err := s.osFile.Truncate(0); err != nil {
		return err
	}
	info, err := s.osFile.Stat()
	if err != nil {
		return err
	}
	s.info = info

	s.sb = core.NewSuperblock()
	s.fw = writer.NewFileWriter(s.osFile, 0, s.sb.EncodedSize())
	root, err := s.placeHeader(newGroupHeader(s.sb.Sizes))
	if err != nil {
		return utils.WrapError("root group write failed", err)
	}
	s.sb.RootGroup = root
	return s.flush()
}

func (s *store) attach(mode Mode) *File {
	f := &File{s: s, mode: mode, handles: make(map[*handle]struct{})}
	s.mu.Lock()
	s.openers[f] = struct{}{}
	s.mu.Unlock()
	return f
}

// flush persists the superblock and grows the file over every allocation.
func (s *store) flush() error {
	if !s.writable {
		return nil
	}
	s.sb.EOFAddress = s.fw.EndOfFile()
	buf, err := s.sb.Encode()
	if err != nil {
		return err
	}
	//nolint:gosec // G115: superblock locations are small
	if _, err := s.osFile.WriteAt(buf, int64(s.sb.Location)); err != nil {
		return utils.WrapError("superblock write failed", err)
	}
	return s.fw.Extend()
}

// release unlocks and closes the underlying file.
func (s *store) release() error {
	var errs []error
	if s.locked {
		errs = append(errs, unlockFile(s.osFile))
		s.locked = false
	}
	if s.fw != nil {
		s.fw.Detach()
	}
	errs = append(errs, s.osFile.Close())
	return errors.Join(errs...)
}

// Path returns the name the file was opened with.
func (f *File) Path() string { return f.s.path }

// SameFile reports whether f and g are openers of the same file.
func (f *File) SameFile(g *File) bool { return f.s == g.s }

// Mode returns the access this opener asked for.
func (f *File) Mode() Mode { return f.mode }

// Writable reports whether the file accepts modifications.
func (f *File) Writable() bool { return f.mode == ReadWrite && f.s.writable }

// SuperblockVersion returns the superblock format version.
func (f *File) SuperblockVersion() uint8 { return f.s.sb.Version }

// Size returns the end-of-file address.
func (f *File) Size() uint64 { return f.s.fw.EndOfFile() }

func (f *File) check() error {
	if f.closed {
		return ErrClosed
	}
	return nil
}

func (f *File) checkWritable() error {
	if err := f.check(); err != nil {
		return err
	}
	if !f.Writable() {
		return ErrReadOnly
	}
	return nil
}

// Openers returns how many Files in the process share the underlying
// file, this one included.
func (f *File) Openers() int {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return len(f.s.openers)
}

// Flush persists the superblock end-of-file marker and syncs the file.
func (f *File) Flush() error {
	if err := f.check(); err != nil {
		return err
	}
	if !f.Writable() {
		return nil
	}
	if err := f.s.flush(); err != nil {
		return err
	}
	return f.s.fw.Flush()
}

// Close invalidates every handle this File still holds and detaches it.
// The last opener of a file flushes, unlocks and closes it. Closing twice
// is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.CloseHandles()
	f.closed = true

	s := f.s
	registry.mu.Lock()
	s.mu.Lock()
	delete(s.openers, f)
	last := len(s.openers) == 0
	s.mu.Unlock()
	if last {
		unregisterStore(s)
	}
	registry.mu.Unlock()
	if !last {
		return nil
	}
	return errors.Join(s.flush(), s.release())
}
