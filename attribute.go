package h5store

import (
	"errors"
	"slices"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/native"
)

// attrPath names an attribute in errors.
func attrPath(owner, name string) string { return owner + "@" + name }

// ExistsAttribute reports whether the group or dataset at owner carries
// an attribute called name.
func (c *Container) ExistsAttribute(name, owner string) (bool, error) {
	const op = "exists attribute"
	f, err := c.file(op, owner)
	if err != nil {
		return false, err
	}
	p, err := absolute(op, owner)
	if err != nil {
		return false, err
	}
	o, err := f.OpenObject(p)
	if err != nil {
		return false, nil
	}
	defer func() { _ = o.Close() }()
	names, err := o.AttributeNames()
	return err == nil && slices.Contains(names, name), nil
}

// loadAttribute reads the attribute name of owner.
func (c *Container) loadAttribute(op, name, owner string) (*core.Attribute, string, error) {
	f, err := c.file(op, owner)
	if err != nil {
		return nil, "", err
	}
	p, err := absolute(op, owner)
	if err != nil {
		return nil, "", err
	}
	ap := attrPath(p, name)
	o, err := f.OpenObject(p)
	if err != nil {
		return nil, ap, wrap(op, ap, err)
	}
	defer func() { _ = o.Close() }()
	a, err := o.OpenAttribute(name)
	if err != nil {
		return nil, ap, wrap(op, ap, err)
	}
	defer func() { _ = a.Close() }()
	attr, err := a.Read()
	if err != nil {
		return nil, ap, wrap(op, ap, err)
	}
	return attr, ap, nil
}

// AttributeShape returns the extents of attribute name of owner, empty
// for a scalar.
func (c *Container) AttributeShape(name, owner string) ([]uint64, error) {
	attr, _, err := c.loadAttribute("attribute shape", name, owner)
	if err != nil {
		return nil, err
	}
	return append([]uint64{}, attr.Dataspace.Dimensions...), nil
}

// AttributeType returns the element type attribute name of owner reads
// as without loss.
func (c *Container) AttributeType(name, owner string) (DataType, error) {
	attr, _, err := c.loadAttribute("attribute type", name, owner)
	if err != nil {
		return Unknown, err
	}
	return nativeType(attr.Datatype), nil
}

// ReadAttribute reads attribute name of owner into out, which is resized
// to the stored shape. Conversion follows ReadDataset.
func ReadAttribute[T Element](c *Container, name, owner string, out *Array[T]) error {
	const op = "read attribute"
	attr, ap, err := c.loadAttribute(op, name, owner)
	if err != nil {
		return err
	}
	if out == nil {
		return fail(op, ap, ErrMalformed, "nil output array")
	}
	if tag := nativeType(attr.Datatype); tag == Text || tag == Unknown {
		return fail(op, ap, ErrTypeMismatch, "stored %s cannot be read as %s", attr.Datatype, TypeOf[T]())
	}
	shape, err := describe[T]().valueShape(attr.Dataspace.Dimensions)
	if err != nil {
		return wrap(op, ap, err)
	}
	if err := out.resize(shape); err != nil {
		return wrap(op, ap, err)
	}
	return wrap(op, ap, coerce(out.data, attr.Datatype, attr.Data))
}

// WriteAttribute stores v as attribute name of owner, replacing any
// attribute of that name. A missing owner is created as an empty group.
func WriteAttribute[T Element](c *Container, name, owner string, v *Array[T]) error {
	const op = "write attribute"
	if v == nil {
		return fail(op, attrPath(owner, name), ErrMalformed, "nil array")
	}
	d := describe[T]()
	return c.putAttribute(op, owner, &core.Attribute{
		Name:      name,
		Datatype:  d.tag.datatype(),
		Dataspace: core.NewDataspace(d.diskShape(v.shape)),
		Data:      encode(v.data),
	})
}

// putAttribute writes attr to owner, creating owner as a group if needed.
func (c *Container) putAttribute(op, owner string, attr *core.Attribute) error {
	f, err := c.writable(op, owner)
	if err != nil {
		return err
	}
	p, err := absolute(op, owner)
	if err != nil {
		return err
	}
	ap := attrPath(p, attr.Name)
	if _, err := f.Stat(p); errors.Is(err, native.ErrNotFound) {
		if err := ensureGroup(f, p); err != nil {
			return wrap(op, ap, err)
		}
	}
	o, err := f.OpenObject(p)
	if err != nil {
		return wrap(op, ap, err)
	}
	defer func() { _ = o.Close() }()
	return wrap(op, ap, o.WriteAttribute(attr))
}

// DeleteAttribute removes attribute name from owner.
func (c *Container) DeleteAttribute(name, owner string) error {
	const op = "delete attribute"
	f, err := c.writable(op, owner)
	if err != nil {
		return err
	}
	p, err := absolute(op, owner)
	if err != nil {
		return err
	}
	ap := attrPath(p, name)
	o, err := f.OpenObject(p)
	if err != nil {
		return wrap(op, ap, err)
	}
	defer func() { _ = o.Close() }()
	return wrap(op, ap, o.DeleteAttribute(name))
}
