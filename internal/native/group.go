package native

import (
	"errors"
	"fmt"

	"github.com/scigolib/h5store/internal/core"
)

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Object is a handle on a group or dataset addressed by path. The path is
// resolved again by every call, so the handle survives header relocation.
type Object struct {
	*handle
	path string
	kind core.ObjectType
}

// Path returns the canonical path of the object.
func (o *Object) Path() string { return o.path }

// Kind returns the object type.
func (o *Object) Kind() core.ObjectType { return o.kind }

func (o *Object) load() (location, *core.ObjectHeader, error) {
	if err := o.check(); err != nil {
		return location{}, nil, err
	}
	loc, err := o.file.s.resolve(o.path)
	if err != nil {
		return location{}, nil, err
	}
	h, err := o.file.s.header(loc.addr)
	if err != nil {
		return location{}, nil, err
	}
	return loc, h, nil
}

// Group is a handle on a group.
type Group struct {
	Object
}

// ObjectInfo describes the object a path resolves to.
type ObjectInfo struct {
	Path    string
	Kind    core.ObjectType
	Address uint64
}

// Stat resolves path without opening a handle.
func (f *File) Stat(path string) (ObjectInfo, error) {
	if err := f.check(); err != nil {
		return ObjectInfo{}, err
	}
	loc, err := f.s.resolve(path)
	if err != nil {
		return ObjectInfo{}, err
	}
	h, err := f.s.header(loc.addr)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Path: loc.path, Kind: h.Type(), Address: loc.addr}, nil
}

// OpenObject opens a handle on the group or dataset at path.
func (f *File) OpenObject(path string) (*Object, error) {
	info, err := f.Stat(path)
	if err != nil {
		return nil, err
	}
	h, err := f.newHandle()
	if err != nil {
		return nil, err
	}
	return &Object{handle: h, path: info.Path, kind: info.Kind}, nil
}

// Root opens the root group.
func (f *File) Root() (*Group, error) {
	return f.OpenGroup("/")
}

// OpenGroup opens the group at path.
func (f *File) OpenGroup(path string) (*Group, error) {
	info, err := f.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Kind != core.ObjectTypeGroup {
		return nil, fmt.Errorf("%s: %w", info.Path, ErrNotGroup)
	}
	h, err := f.newHandle()
	if err != nil {
		return nil, err
	}
	return &Group{Object{handle: h, path: info.Path, kind: info.Kind}}, nil
}

// Links returns the group members sorted by name.
func (g *Group) Links() ([]Link, error) {
	_, h, err := g.load()
	if err != nil {
		return nil, err
	}
	return g.file.s.links(h)
}

// Child is a group member together with the kind of object it leads to.
// Kind is ObjectTypeUnknown for dangling soft links and external links.
type Child struct {
	Link
	Kind core.ObjectType
}

// Children returns the members with their object kinds, sorted by name.
func (g *Group) Children() ([]Child, error) {
	links, err := g.Links()
	if err != nil {
		return nil, err
	}
	out := make([]Child, 0, len(links))
	for _, l := range links {
		c := Child{Link: l}
		switch l.Type {
		case core.LinkHard:
			h, err := g.file.s.header(l.Address)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", joinPath(g.path, l.Name), err)
			}
			c.Kind = h.Type()
		case core.LinkSoft:
			if info, err := g.file.Stat(joinPath(g.path, l.Name)); err == nil {
				c.Kind = info.Kind
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// CreateGroup creates an empty group named name inside g.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := g.file.checkWritable(); err != nil {
		return nil, err
	}
	loc, h, err := g.load()
	if err != nil {
		return nil, err
	}
	s := g.file.s
	if _, err := s.lookup(h, name); err == nil {
		return nil, fmt.Errorf("%s: %w", joinPath(loc.path, name), ErrExists)
	} else if !isNotFound(err) {
		return nil, err
	}

	addr, err := s.placeHeader(newGroupHeader(s.sb.Sizes))
	if err != nil {
		return nil, err
	}
	if err := s.addLink(loc, h, core.NewHardLink(name, addr)); err != nil {
		return nil, err
	}
	return g.file.OpenGroup(joinPath(loc.path, name))
}

// CreateSoftLink adds a soft link named name pointing at target.
func (g *Group) CreateSoftLink(name, target string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	loc, h, err := g.load()
	if err != nil {
		return err
	}
	l := &core.LinkMessage{Name: name, Type: core.LinkSoft, Charset: core.CharsetUTF8, Target: []byte(target)}
	return g.file.s.addLink(loc, h, l)
}

// Unlink removes the member called name. The object's storage is not
// reclaimed; the file does not shrink.
func (g *Group) Unlink(name string) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	loc, h, err := g.load()
	if err != nil {
		return err
	}
	return g.file.s.removeLink(loc, h, name)
}
