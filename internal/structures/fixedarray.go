package structures

import (
	"io"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/utils"
)

const (
	fixedArrayHeaderSignature = "FAHD"
	fixedArrayBlockSignature  = "FADB"
)

// ReadFixedArray reads the fixed array chunk index of a version 4 layout.
// grid holds the number of chunks along each dimension; entries are
// stored in row-major order over it. Paged data blocks are not supported.
func ReadFixedArray(r io.ReaderAt, address uint64, sizes utils.Sizes, grid []uint64) ([]ChunkRecord, error) {
	headerSize := 4 + 4 + int(sizes.Length) + int(sizes.Offset) + 4
	raw, err := core.ReadBlock(r, address, headerSize)
	if err != nil {
		return nil, utils.WrapError("fixed array header read failed", err)
	}
	if string(raw[:4]) != fixedArrayHeaderSignature {
		return nil, utils.Corruptf("invalid fixed array header signature at %d", address)
	}
	if err := utils.VerifyLookup3(raw, "fixed array header"); err != nil {
		return nil, err
	}

	c := utils.NewCursor(raw, sizes)
	c.Skip(4)
	if v := c.U8(); v != 0 {
		return nil, utils.Unsupportedf("fixed array version %d", v)
	}
	client := c.U8()
	entrySize := int(c.U8())
	pageBits := c.U8()
	count := c.Length()
	block := c.Offset()
	if err := c.Err(); err != nil {
		return nil, err
	}

	filtered := client == 1
	minEntry := int(sizes.Offset)
	if filtered {
		minEntry += 5
	}
	if client > 1 || entrySize < minEntry {
		return nil, utils.Corruptf("fixed array client %d with entry size %d", client, entrySize)
	}
	if pageBits < 64 && count > uint64(1)<<pageBits {
		return nil, utils.Unsupportedf("paged fixed array of %d entries", count)
	}
	want, err := utils.ElementCount(grid)
	if err != nil {
		return nil, err
	}
	if count != want {
		return nil, utils.Corruptf("fixed array holds %d entries for %d chunks", count, want)
	}
	if utils.IsUndefined(block, sizes.Offset) || count == 0 {
		return nil, nil
	}

	size, err := utils.SafeMultiply(count, uint64(entrySize))
	if err != nil {
		return nil, err
	}
	blockSize := 6 + uint64(sizes.Offset) + size + 4
	if err := utils.CheckAlloc(blockSize, "fixed array data block"); err != nil {
		return nil, err
	}
	data, err := core.ReadBlock(r, block, int(blockSize)) //nolint:gosec // G115: bounded by CheckAlloc
	if err != nil {
		return nil, utils.WrapError("fixed array data block read failed", err)
	}
	if string(data[:4]) != fixedArrayBlockSignature {
		return nil, utils.Corruptf("invalid fixed array data block signature at %d", block)
	}
	if err := utils.VerifyLookup3(data, "fixed array data block"); err != nil {
		return nil, err
	}

	c = utils.NewCursor(data, sizes)
	c.Skip(6)
	c.Offset()
	var out []ChunkRecord
	for i := uint64(0); i < count; i++ {
		rec := ChunkRecord{Address: c.Offset()}
		if filtered {
			rec.Size = uint32(c.Uint(entrySize - int(sizes.Offset) - 4)) //nolint:gosec // G115: chunk sizes fit 32 bits
			rec.FilterMask = c.U32()
		}
		if utils.IsUndefined(rec.Address, sizes.Offset) {
			continue
		}
		rec.Coords = Unravel(i, grid)
		out = append(out, rec)
	}
	return out, c.Err()
}

// Unravel converts a row-major linear index into coordinates over grid.
func Unravel(index uint64, grid []uint64) []uint64 {
	coords := make([]uint64, len(grid))
	for d := len(grid) - 1; d >= 0; d-- {
		if grid[d] == 0 {
			continue
		}
		coords[d] = index % grid[d]
		index /= grid[d]
	}
	return coords
}
