package h5store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/native"
)

// exists reports whether p resolves to an object of the given kind. Any
// lookup failure reads as false.
func (c *Container) exists(op, path string, kind core.ObjectType) (bool, error) {
	f, err := c.file(op, path)
	if err != nil {
		return false, err
	}
	p, err := absolute(op, path)
	if err != nil {
		return false, err
	}
	info, err := f.Stat(p)
	return err == nil && info.Kind == kind, nil
}

// ExistsGroup reports whether path names a group.
func (c *Container) ExistsGroup(path string) (bool, error) {
	return c.exists("exists group", path, core.ObjectTypeGroup)
}

// CreateGroup creates the group at path together with every missing
// group above it. An existing group is left as it is.
func (c *Container) CreateGroup(path string) error {
	const op = "create group"
	f, err := c.writable(op, path)
	if err != nil {
		return err
	}
	p, err := absolute(op, path)
	if err != nil {
		return err
	}
	return wrap(op, p, ensureGroup(f, p))
}

// ensureGroup creates the missing groups along p. It fails with
// native.ErrNotGroup if a component names something else.
func ensureGroup(f *native.File, p string) error {
	if p == "/" {
		return nil
	}
	cur := "/"
	for _, seg := range strings.Split(p[1:], "/") {
		next := join(cur, seg)
		info, err := f.Stat(next)
		switch {
		case err == nil:
			if info.Kind != core.ObjectTypeGroup {
				return fmt.Errorf("%s: %w", next, native.ErrNotGroup)
			}
			next = info.Path
		case errors.Is(err, native.ErrNotFound):
			if err := createChild(f, cur, seg); err != nil {
				return err
			}
		default:
			return err
		}
		cur = next
	}
	return nil
}

func createChild(f *native.File, parent, name string) error {
	g, err := f.OpenGroup(parent)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close() }()
	child, err := g.CreateGroup(name)
	if err != nil {
		return err
	}
	return child.Close()
}

// lookupLink returns the link naming p in its parent group.
func lookupLink(f *native.File, p string) (native.Link, error) {
	parent, name := split(p)
	g, err := f.OpenGroup(parent)
	if err != nil {
		return native.Link{}, err
	}
	defer func() { _ = g.Close() }()
	links, err := g.Links()
	if err != nil {
		return native.Link{}, err
	}
	for _, l := range links {
		if l.Name == name {
			return l, nil
		}
	}
	return native.Link{}, fmt.Errorf("%s: %w", p, native.ErrNotFound)
}

// unlink removes the link naming p from its parent group.
func unlink(f *native.File, p string) error {
	parent, name := split(p)
	g, err := f.OpenGroup(parent)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close() }()
	return g.Unlink(name)
}

// DeleteGroup removes the group at path and everything below it, depth
// first. A soft link to a group is removed without touching the target.
// Deleting the root group is an error. Freed space is not reclaimed.
func (c *Container) DeleteGroup(path string) error {
	const op = "delete group"
	f, err := c.writable(op, path)
	if err != nil {
		return err
	}
	p, err := absolute(op, path)
	if err != nil {
		return err
	}
	if p == "/" {
		return fail(op, p, ErrMalformed, "the root group cannot be deleted")
	}
	info, err := f.Stat(p)
	if err != nil {
		return wrap(op, p, err)
	}
	if info.Kind != core.ObjectTypeGroup {
		return fail(op, p, ErrTypeMismatch, "%s is a %s", p, info.Kind)
	}
	l, err := lookupLink(f, p)
	if err != nil {
		return wrap(op, p, err)
	}
	if l.Type == core.LinkHard {
		if err := deleteTree(f, info.Path); err != nil {
			return wrap(op, p, err)
		}
	}
	return wrap(op, p, unlink(f, p))
}

// deleteTree empties the group at p, children before their parents.
func deleteTree(f *native.File, p string) error {
	g, err := f.OpenGroup(p)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close() }()
	children, err := g.Children()
	if err != nil {
		return err
	}
	for _, ch := range children {
		if ch.Type == core.LinkHard && ch.Kind == core.ObjectTypeGroup {
			if err := deleteTree(f, join(p, ch.Name)); err != nil {
				return err
			}
		}
		if err := g.Unlink(ch.Name); err != nil {
			return err
		}
	}
	return nil
}
