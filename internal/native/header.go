package native

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/structures"
	"github.com/scigolib/h5store/internal/utils"
)

// maxSoftLinkHops matches the libhdf5 default traversal limit.
const maxSoftLinkHops = 16

// Link is one named member of a group.
type Link struct {
	Name    string
	Type    core.LinkType
	Address uint64 // hard links only
	Target  string // soft link path
}

// location is an object reached from the root. path is canonical: it
// follows hard links only, so the last component names the link that
// points at addr.
type location struct {
	path string
	addr uint64
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" && seg != "." {
			out = append(out, seg)
		}
	}
	return out
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func parentOf(p string) (parent, name string) {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return "/", p[i+1:]
	}
	return p[:i], p[i+1:]
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

func (s *store) header(addr uint64) (*core.ObjectHeader, error) {
	return core.ReadObjectHeader(s.fw, addr, s.sb.Sizes)
}

// resolve follows p from the root group. Soft links are followed up to
// maxSoftLinkHops; external links are not supported.
func (s *store) resolve(p string) (location, error) {
	hops := 0
	return s.walk(location{path: "/", addr: s.sb.RootGroup}, splitPath(p), &hops)
}

func (s *store) walk(loc location, segs []string, hops *int) (location, error) {
	for _, name := range segs {
		h, err := s.header(loc.addr)
		if err != nil {
			return location{}, err
		}
		link, err := s.lookup(h, name)
		if err != nil {
			return location{}, fmt.Errorf("%s: %w", joinPath(loc.path, name), err)
		}
		switch link.Type {
		case core.LinkHard:
			loc = location{path: joinPath(loc.path, name), addr: link.Address}
		case core.LinkSoft:
			*hops++
			if *hops > maxSoftLinkHops {
				return location{}, fmt.Errorf("%s: more than %d soft links: %w", joinPath(loc.path, name), maxSoftLinkHops, ErrNotFound)
			}
			start := loc
			if strings.HasPrefix(link.Target, "/") {
				start = location{path: "/", addr: s.sb.RootGroup}
			}
			if loc, err = s.walk(start, splitPath(link.Target), hops); err != nil {
				return location{}, err
			}
		default:
			return location{}, utils.Unsupportedf("%s link %s", link.Type, joinPath(loc.path, name))
		}
	}
	return loc, nil
}

func (s *store) lookup(h *core.ObjectHeader, name string) (Link, error) {
	links, err := s.links(h)
	if err != nil {
		return Link{}, err
	}
	i := sort.Search(len(links), func(i int) bool { return links[i].Name >= name })
	if i < len(links) && links[i].Name == name {
		return links[i], nil
	}
	return Link{}, ErrNotFound
}

// links returns the members of a group header sorted by name.
func (s *store) links(h *core.ObjectHeader) ([]Link, error) {
	sizes := s.sb.Sizes
	var out []Link
	if m := h.Find(core.MsgSymbolTable); m != nil {
		st, err := core.ParseSymbolTableMessage(m.Data, sizes)
		if err != nil {
			return nil, err
		}
		syms, err := structures.ReadSymbolTable(s.fw, st.BTree, st.Heap, sizes)
		if err != nil {
			return nil, err
		}
		for _, sym := range syms {
			l := Link{Name: sym.Name, Type: core.LinkHard, Address: sym.Address}
			if sym.IsSoft {
				l = Link{Name: sym.Name, Type: core.LinkSoft, Address: utils.UndefinedAddress, Target: sym.SoftTarget}
			}
			out = append(out, l)
		}
	} else {
		if m := h.Find(core.MsgLinkInfo); m != nil {
			li, err := core.ParseLinkInfoMessage(m.Data, sizes)
			if err != nil {
				return nil, err
			}
			if li.Dense() {
				return nil, utils.Unsupportedf("dense link storage")
			}
		} else if h.Type() != core.ObjectTypeGroup {
			return nil, ErrNotGroup
		}
		for _, m := range h.FindAll(core.MsgLink) {
			lm, err := core.ParseLinkMessage(m.Data, sizes)
			if err != nil {
				return nil, err
			}
			out = append(out, Link{Name: lm.Name, Type: lm.Type, Address: lm.Address, Target: string(lm.Target)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ensureCompact rewrites an old-style symbol table group header in memory
// as a compact link group. The caller commits it; the version 1 header
// cannot be updated in place, so the commit relocates it.
func (s *store) ensureCompact(h *core.ObjectHeader) error {
	if h.Find(core.MsgSymbolTable) == nil {
		return nil
	}
	links, err := s.links(h)
	if err != nil {
		return err
	}
	h.Remove(func(m *core.HeaderMessage) bool { return m.Type == core.MsgSymbolTable })
	h.Add(core.MsgLinkInfo, 0, core.NewLinkInfo().Encode(s.sb.Sizes))
	h.Add(core.MsgGroupInfo, 0, core.EncodeGroupInfo())
	for _, l := range links {
		lm := core.NewHardLink(l.Name, l.Address)
		if l.Type == core.LinkSoft {
			lm = &core.LinkMessage{Name: l.Name, Type: core.LinkSoft, Charset: core.CharsetUTF8, Target: []byte(l.Target)}
		}
		h.Add(core.MsgLink, 0, lm.Encode(s.sb.Sizes))
	}
	return nil
}

func newGroupHeader(sizes utils.Sizes) *core.ObjectHeader {
	h := core.NewObjectHeader()
	h.Add(core.MsgLinkInfo, 0, core.NewLinkInfo().Encode(sizes))
	h.Add(core.MsgGroupInfo, 0, core.EncodeGroupInfo())
	return h
}

// placeHeader writes h to a fresh allocation with room to grow and
// records the new address in h.
func (s *store) placeHeader(h *core.ObjectHeader) (uint64, error) {
	h.Prepare(0)
	alloc := core.Slack(h.EncodedSize() + 8)
	h.Prepare(alloc)
	buf, err := h.Encode(alloc)
	if err != nil {
		return 0, err
	}
	addr, err := s.fw.Append(buf)
	if err != nil {
		return 0, err
	}
	h.Address, h.Allocated, h.Chunks = addr, alloc, 1
	return addr, nil
}

// commit writes a modified header back. It is rewritten in place when it
// still fits its first chunk; otherwise it moves to a new allocation and
// the link at p (or the superblock, for the root) is pointed at it. The
// old space is not reclaimed.
func (s *store) commit(p string, h *core.ObjectHeader) error {
	if h.Chunks == 1 && h.FitsIn(h.Allocated) {
		buf, err := h.Encode(h.Allocated)
		if err != nil {
			return err
		}
		return s.fw.WriteAtAddress(buf, h.Address)
	}
	old := h.Address
	addr, err := s.placeHeader(h)
	if err != nil {
		return utils.WrapError(fmt.Sprintf("relocating header of %s", p), err)
	}
	return s.relink(p, old, addr)
}

func (s *store) relink(p string, old, addr uint64) error {
	if p == "/" {
		s.sb.RootGroup = addr
		s.sb.DetachRootCache()
		return s.flush()
	}

	parent, name := parentOf(p)
	loc, err := s.resolve(parent)
	if err != nil {
		return err
	}
	ph, err := s.header(loc.addr)
	if err != nil {
		return err
	}
	if err := s.ensureCompact(ph); err != nil {
		return err
	}
	for _, m := range ph.FindAll(core.MsgLink) {
		lm, err := core.ParseLinkMessage(m.Data, s.sb.Sizes)
		if err != nil {
			return err
		}
		if lm.Name == name && lm.Type == core.LinkHard && lm.Address == old {
			lm.Address = addr
			m.Data = lm.Encode(s.sb.Sizes)
			return s.commit(loc.path, ph)
		}
	}
	return utils.Corruptf("%s no longer links the header at %d", p, old)
}

// addLink adds l to the group at loc, failing with ErrExists on a name
// collision.
func (s *store) addLink(loc location, h *core.ObjectHeader, l *core.LinkMessage) error {
	if _, err := s.lookup(h, l.Name); err == nil {
		return fmt.Errorf("%s: %w", joinPath(loc.path, l.Name), ErrExists)
	} else if !isNotFound(err) {
		return err
	}
	if err := s.ensureCompact(h); err != nil {
		return err
	}
	h.Add(core.MsgLink, 0, l.Encode(s.sb.Sizes))
	return s.commit(loc.path, h)
}

func (s *store) removeLink(loc location, h *core.ObjectHeader, name string) error {
	if _, err := s.lookup(h, name); err != nil {
		return fmt.Errorf("%s: %w", joinPath(loc.path, name), err)
	}
	if err := s.ensureCompact(h); err != nil {
		return err
	}
	var bad error
	h.Remove(func(m *core.HeaderMessage) bool {
		if m.Type != core.MsgLink {
			return false
		}
		lm, err := core.ParseLinkMessage(m.Data, s.sb.Sizes)
		if err != nil {
			bad = err
			return false
		}
		return lm.Name == name
	})
	if bad != nil {
		return bad
	}
	return s.commit(loc.path, h)
}
