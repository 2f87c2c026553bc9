package core

import (
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/h5store/internal/utils"
)

// HDF5 file signature and supported superblock versions.
const (
	Signature = "\x89HDF\r\n\x1a\n"
	Version0  = 0
	Version1  = 1
	Version2  = 2
	Version3  = 3
)

// Default B-tree K values for files whose superblock does not store them.
const (
	DefaultGroupLeafK     = 4
	DefaultGroupInternalK = 16
	DefaultChunkK         = 32
)

// superblockV2Size is the encoded size of a version 2/3 superblock with 8-byte offsets.
const superblockV2Size = 48

// Superblock represents the HDF5 file superblock containing file-level metadata.
//
// All addresses are relative to BaseAddress, which is itself an absolute
// file offset (non-zero when the file carries a user block).
type Superblock struct {
	Version uint8
	Sizes   utils.Sizes

	// Location is the absolute file offset the signature was found at.
	Location uint64

	GroupLeafK     uint16
	GroupInternalK uint16
	ChunkK         uint16
	Flags          uint32

	BaseAddress    uint64
	FreeSpace      uint64
	SuperExtension uint64
	EOFAddress     uint64
	DriverInfo     uint64

	// RootGroup is the object header address of the root group.
	RootGroup uint64

	// Root symbol table entry fields, versions 0 and 1 only.
	RootNameOffset uint64
	RootCacheType  uint32
	RootScratch    [16]byte
}

// NewSuperblock returns the version 2 superblock used for files created by this engine.
func NewSuperblock() *Superblock {
	return &Superblock{
		Version:        Version2,
		Sizes:          utils.DefaultSizes,
		GroupLeafK:     DefaultGroupLeafK,
		GroupInternalK: DefaultGroupInternalK,
		ChunkK:         DefaultChunkK,
		FreeSpace:      utils.UndefinedAddress,
		SuperExtension: utils.UndefinedAddress,
		DriverInfo:     utils.UndefinedAddress,
		RootGroup:      utils.UndefinedAddress,
	}
}

// FindSuperblock scans the canonical signature locations (0, 512, 1024, ...)
// and parses the first superblock it finds.
func FindSuperblock(r io.ReaderAt, fileSize int64) (*Superblock, error) {
	sig := utils.GetBuffer(len(Signature))
	defer utils.ReleaseBuffer(sig)
	for loc := int64(0); loc == 0 || loc+int64(len(Signature)) <= fileSize; loc = nextLocation(loc) {
		if _, err := r.ReadAt(sig, loc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, utils.WrapError("superblock read failed", err)
		}
		if string(sig) == Signature {
			return ReadSuperblock(r, uint64(loc)) //nolint:gosec // G115: loc is non-negative
		}
	}
	return nil, utils.Corruptf("HDF5 signature not found")
}

func nextLocation(loc int64) int64 {
	if loc == 0 {
		return 512
	}
	return loc * 2
}

// ReadSuperblock parses the superblock whose signature sits at loc.
func ReadSuperblock(r io.ReaderAt, loc uint64) (*Superblock, error) {
	buf := make([]byte, 256)
	//nolint:gosec // G115: superblock locations are small
	n, err := r.ReadAt(buf, int64(loc))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, utils.WrapError("superblock read failed", err)
	}
	buf = buf[:n]
	if n < 12 || string(buf[:8]) != Signature {
		return nil, utils.Corruptf("invalid HDF5 signature")
	}

	sb := &Superblock{Version: buf[8], Location: loc}
	switch sb.Version {
	case Version0, Version1:
		err = sb.decodeV0(buf)
	case Version2, Version3:
		err = sb.decodeV2(buf)
	default:
		return nil, utils.Unsupportedf("superblock version %d", sb.Version)
	}
	if err != nil {
		return nil, err
	}
	return sb, nil
}

func (sb *Superblock) decodeV0(buf []byte) error {
	if len(buf) < 16 {
		return utils.Corruptf("superblock truncated")
	}
	sb.Sizes = utils.Sizes{Offset: buf[13], Length: buf[14]}
	if err := sb.Sizes.Validate(); err != nil {
		return err
	}

	c := utils.NewCursor(buf, sb.Sizes)
	c.Skip(16)
	sb.GroupLeafK = c.U16()
	sb.GroupInternalK = c.U16()
	sb.Flags = c.U32()
	sb.ChunkK = DefaultChunkK
	if sb.Version == Version1 {
		sb.ChunkK = c.U16()
		c.Skip(2)
	}
	sb.BaseAddress = c.Offset()
	sb.FreeSpace = c.Offset()
	sb.EOFAddress = c.Offset()
	sb.DriverInfo = c.Offset()
	sb.SuperExtension = utils.UndefinedAddress

	sb.RootNameOffset = c.Offset()
	sb.RootGroup = c.Offset()
	sb.RootCacheType = c.U32()
	c.Skip(4)
	copy(sb.RootScratch[:], c.Bytes(16))
	if err := c.Err(); err != nil {
		return utils.WrapError("superblock v0 decode failed", err)
	}
	return nil
}

func (sb *Superblock) decodeV2(buf []byte) error {
	sb.Sizes = utils.Sizes{Offset: buf[9], Length: buf[10]}
	if err := sb.Sizes.Validate(); err != nil {
		return err
	}
	size := 12 + 4*int(sb.Sizes.Offset) + 4
	if len(buf) < size {
		return utils.Corruptf("superblock truncated")
	}
	if err := utils.VerifyLookup3(buf[:size], "superblock"); err != nil {
		return err
	}

	c := utils.NewCursor(buf[:size], sb.Sizes)
	c.Skip(11)
	sb.Flags = uint32(c.U8())
	sb.BaseAddress = c.Offset()
	sb.SuperExtension = c.Offset()
	sb.EOFAddress = c.Offset()
	sb.RootGroup = c.Offset()
	sb.GroupLeafK = DefaultGroupLeafK
	sb.GroupInternalK = DefaultGroupInternalK
	sb.ChunkK = DefaultChunkK
	sb.FreeSpace = utils.UndefinedAddress
	sb.DriverInfo = utils.UndefinedAddress
	return c.Err()
}

// Encode serializes the superblock in its own version's format.
func (sb *Superblock) Encode() ([]byte, error) {
	switch sb.Version {
	case Version0, Version1:
		return sb.encodeV0(), nil
	case Version2, Version3:
		return sb.encodeV2(), nil
	default:
		return nil, fmt.Errorf("cannot encode superblock version %d", sb.Version)
	}
}

func (sb *Superblock) encodeV0() []byte {
	b := utils.NewBuilder(sb.Sizes, 128)
	b.Bytes([]byte(Signature))
	b.U8(sb.Version)
	b.U8(0) // free-space storage version
	b.U8(0) // root group symbol table entry version
	b.U8(0)
	b.U8(0) // shared header message format version
	b.U8(sb.Sizes.Offset)
	b.U8(sb.Sizes.Length)
	b.U8(0)
	b.U16(sb.GroupLeafK)
	b.U16(sb.GroupInternalK)
	b.U32(sb.Flags)
	if sb.Version == Version1 {
		b.U16(sb.ChunkK)
		b.U16(0)
	}
	b.Offset(sb.BaseAddress)
	b.Offset(sb.FreeSpace)
	b.Offset(sb.EOFAddress)
	b.Offset(sb.DriverInfo)
	b.Offset(sb.RootNameOffset)
	b.Offset(sb.RootGroup)
	b.U32(sb.RootCacheType)
	b.U32(0)
	b.Bytes(sb.RootScratch[:])
	return b.Result()
}

func (sb *Superblock) encodeV2() []byte {
	b := utils.NewBuilder(sb.Sizes, superblockV2Size)
	b.Bytes([]byte(Signature))
	b.U8(sb.Version)
	b.U8(sb.Sizes.Offset)
	b.U8(sb.Sizes.Length)
	b.U8(uint8(sb.Flags)) //nolint:gosec // G115: v2 flags are one byte
	b.Offset(sb.BaseAddress)
	b.Offset(sb.SuperExtension)
	b.Offset(sb.EOFAddress)
	b.Offset(sb.RootGroup)
	b.U32(utils.Lookup3(b.Result()))
	return b.Result()
}

// EncodedSize returns the number of bytes Encode produces.
func (sb *Superblock) EncodedSize() uint64 {
	o := uint64(sb.Sizes.Offset)
	switch sb.Version {
	case Version0:
		return 24 + 4*o + 2*o + 24
	case Version1:
		return 28 + 4*o + 2*o + 24
	default:
		return 12 + 4*o + 4
	}
}

// DetachRootCache drops the cached symbol table addresses of a version 0/1
// root entry, required once the root group no longer uses a symbol table.
func (sb *Superblock) DetachRootCache() {
	sb.RootCacheType = 0
	sb.RootScratch = [16]byte{}
}

// RootSymbolTable returns the B-tree and local heap cached in the root
// entry scratch pad, if the superblock carries them.
func (sb *Superblock) RootSymbolTable() (btree, heap uint64, ok bool) {
	if sb.Version > Version1 || sb.RootCacheType != 1 {
		return 0, 0, false
	}
	c := utils.NewCursor(sb.RootScratch[:], sb.Sizes)
	btree = c.Offset()
	heap = c.Offset()
	return btree, heap, c.Err() == nil
}
