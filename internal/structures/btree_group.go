package structures

import (
	"io"
	"sort"

	"github.com/scigolib/h5store/internal/utils"
)

// Symbol is one named member of a symbol table group.
type Symbol struct {
	Name    string
	Address uint64
	// SoftTarget holds the link value when IsSoft is set.
	SoftTarget string
	IsSoft     bool
}

// ReadSymbolTable walks a group B-tree (type 0) and resolves every entry
// name through the group's local heap.
func ReadSymbolTable(r io.ReaderAt, btree, heap uint64, sizes utils.Sizes) ([]Symbol, error) {
	h, err := LoadLocalHeap(r, heap, sizes)
	if err != nil {
		return nil, err
	}
	var entries []SymbolTableEntry
	if err := walkGroupNode(r, btree, sizes, 0, &entries); err != nil {
		return nil, err
	}

	out := make([]Symbol, 0, len(entries))
	for _, e := range entries {
		name, err := h.GetString(e.NameOffset)
		if err != nil {
			return nil, utils.WrapError("symbol name", err)
		}
		s := Symbol{Name: name, Address: e.ObjectAddress}
		if e.CacheType == CacheTypeSoftLink {
			s.IsSoft = true
			if s.SoftTarget, err = h.GetString(e.SoftLinkOffset()); err != nil {
				return nil, utils.WrapError("soft link value", err)
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func walkGroupNode(r io.ReaderAt, address uint64, sizes utils.Sizes, depth int, out *[]SymbolTableEntry) error {
	if depth > maxBTreeDepth {
		return utils.Corruptf("group B-tree deeper than %d levels", maxBTreeDepth)
	}
	h, c, err := readNode(r, address, sizes, BTreeGroupNode, func(h nodeHeader) int {
		return int(h.Entries)*int(sizes.Offset) + (int(h.Entries)+1)*int(sizes.Length)
	})
	if err != nil {
		return err
	}

	children := make([]uint64, h.Entries)
	for i := range children {
		c.Length()
		children[i] = c.Offset()
	}
	if err := c.Err(); err != nil {
		return err
	}

	for _, child := range children {
		if h.Level > 0 {
			if err := walkGroupNode(r, child, sizes, depth+1, out); err != nil {
				return err
			}
			continue
		}
		entries, err := ParseSymbolTableNode(r, child, sizes)
		if err != nil {
			return err
		}
		*out = append(*out, entries...)
	}
	return nil
}

// WriteSymbolTable writes an old-style group holding symbols: a local heap,
// symbol table nodes of 2*leafK entries and a single leaf B-tree node of
// order internalK. It returns the B-tree and heap addresses.
func WriteSymbolTable(w Writer, a Allocator, sizes utils.Sizes, symbols []Symbol, leafK, internalK int) (btree, heap uint64, err error) {
	sorted := append([]Symbol(nil), symbols...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	lh := NewLocalHeap()
	entries := make([]SymbolTableEntry, len(sorted))
	for i, s := range sorted {
		e := SymbolTableEntry{NameOffset: lh.AddString(s.Name), ObjectAddress: s.Address}
		if s.IsSoft {
			e.CacheType = CacheTypeSoftLink
			e.ObjectAddress = utils.UndefinedAddress
			utils.EncodeUint(e.Scratch[:4], lh.AddString(s.SoftTarget), 4)
		}
		entries[i] = e
	}

	perNode := 2 * leafK
	nodes := (len(entries) + perNode - 1) / perNode
	if nodes > 2*internalK {
		return 0, 0, utils.Unsupportedf("symbol table with %d entries needs an internal B-tree level", len(entries))
	}

	keys := []uint64{0}
	var children []uint64
	for start := 0; start < len(entries); start += perNode {
		chunk := entries[start:min(start+perNode, len(entries))]
		buf := EncodeSymbolTableNode(chunk, perNode, sizes)
		addr, err := a.Allocate(uint64(len(buf)))
		if err != nil {
			return 0, 0, err
		}
		if err := w.WriteAtAddress(buf, addr); err != nil {
			return 0, 0, err
		}
		children = append(children, addr)
		keys = append(keys, chunk[len(chunk)-1].NameOffset)
	}

	if heap, err = lh.WriteTo(w, a, sizes); err != nil {
		return 0, 0, err
	}

	b := utils.NewBuilder(sizes, nodeHeaderSize(sizes)+(4*internalK+1)*8)
	encodeNodeHeader(b, nodeHeader{
		Type:    BTreeGroupNode,
		Entries: uint16(len(children)), //nolint:gosec // G115: bounded above
		Left:    utils.UndefinedAddress,
		Right:   utils.UndefinedAddress,
	})
	for i, child := range children {
		b.Length(keys[i])
		b.Offset(child)
	}
	b.Length(keys[len(keys)-1])
	unused := 2*internalK - len(children)
	b.Zeros(unused * (int(sizes.Offset) + int(sizes.Length)))

	if btree, err = a.Allocate(uint64(b.Len())); err != nil {
		return 0, 0, err
	}
	if err := w.WriteAtAddress(b.Result(), btree); err != nil {
		return 0, 0, err
	}
	return btree, heap, nil
}
