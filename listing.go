package h5store

import (
	"slices"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/native"
)

// children returns the members of the group at path and the group's
// canonical path.
func (c *Container) children(op, path string) ([]native.Child, string, error) {
	f, err := c.file(op, path)
	if err != nil {
		return nil, "", err
	}
	p, err := absolute(op, path)
	if err != nil {
		return nil, "", err
	}
	g, err := f.OpenGroup(p)
	if err != nil {
		return nil, p, wrap(op, p, err)
	}
	defer func() { _ = g.Close() }()
	children, err := g.Children()
	if err != nil {
		return nil, p, wrap(op, p, err)
	}
	return children, g.Path(), nil
}

func (c *Container) names(op, path string, keep func(native.Child) bool) ([]string, error) {
	children, _, err := c.children(op, path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(children))
	for _, ch := range children {
		if keep(ch) {
			names = append(names, ch.Name)
		}
	}
	return names, nil
}

// Objects returns the names of every member of the group at path, soft
// links included, sorted.
func (c *Container) Objects(path string) ([]string, error) {
	return c.names("list objects", path, func(native.Child) bool { return true })
}

// Groups returns the names of the subgroups of the group at path.
func (c *Container) Groups(path string) ([]string, error) {
	return c.names("list groups", path, func(ch native.Child) bool { return ch.Kind == core.ObjectTypeGroup })
}

// Datasets returns the names of the datasets in the group at path.
func (c *Container) Datasets(path string) ([]string, error) {
	return c.names("list datasets", path, func(ch native.Child) bool { return ch.Kind == core.ObjectTypeDataset })
}

// Attributes returns the attribute names of the group or dataset at path
// in creation order.
func (c *Container) Attributes(path string) ([]string, error) {
	const op = "list attributes"
	f, err := c.file(op, path)
	if err != nil {
		return nil, err
	}
	p, err := absolute(op, path)
	if err != nil {
		return nil, err
	}
	o, err := f.OpenObject(p)
	if err != nil {
		return nil, wrap(op, p, err)
	}
	defer func() { _ = o.Close() }()
	names, err := o.AttributeNames()
	return names, wrap(op, p, err)
}

// AllDatasets returns the absolute paths of every dataset below the group
// at path, sorted. Soft links are not followed.
func (c *Container) AllDatasets(path string) ([]string, error) {
	const op = "list all datasets"
	var out []string
	var walk func(string) error
	walk = func(p string) error {
		children, gp, err := c.children(op, p)
		if err != nil {
			return err
		}
		for _, ch := range children {
			if ch.Type != core.LinkHard {
				continue
			}
			switch ch.Kind {
			case core.ObjectTypeDataset:
				out = append(out, join(gp, ch.Name))
			case core.ObjectTypeGroup:
				if err := walk(join(gp, ch.Name)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(path); err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}
