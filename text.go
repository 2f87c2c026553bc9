package h5store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/native"
)

// textType returns the stored form of s: one null-padded UTF-8 string of
// its byte length. The empty string keeps a single NUL since a string
// type cannot be zero bytes long.
func textType(s string) (*core.DatatypeMessage, []byte) {
	data := []byte(s)
	if len(data) == 0 {
		data = []byte{0}
	}
	return core.NewFixedString(uint32(len(data)), core.PadNullPad, core.CharsetUTF8), data //nolint:gosec // G115: bounded by memory
}

// checkText reports whether a stored value of type dt and shape dims
// reads as text: one fixed-length string, or a scalar or 1-D run of
// single-byte integers.
func checkText(dt *core.DatatypeMessage, dims []uint64) error {
	switch {
	case dt.IsFixedString():
		if n := storedSize(dims, 1); n != 1 {
			return fmt.Errorf("%w: dataspace %v holds %d strings", ErrTypeMismatch, dims, n)
		}
		return nil
	case dt.IsVarString():
		return fmt.Errorf("%w: variable-length text: %w", ErrTypeMismatch, ErrUnsupported)
	case dt.Class == core.DatatypeFixed && dt.Size == 1 && len(dims) <= 1:
		return nil
	}
	return fmt.Errorf("%w: stored %s is not text", ErrTypeMismatch, dt)
}

// decodeText strips the padding of a stored string. Null-padded bytes
// are kept as stored.
func decodeText(dt *core.DatatypeMessage, raw []byte) string {
	if !dt.IsFixedString() {
		return string(raw)
	}
	switch dt.StringPad() {
	case core.PadNullTerm:
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
	case core.PadSpacePad:
		raw = bytes.TrimRight(raw, " ")
	default:
		// Null-padded text fills its type exactly, except the empty
		// string.
		if len(raw) == 1 && raw[0] == 0 {
			raw = nil
		}
	}
	return string(raw)
}

// WriteText stores s as a scalar string dataset at path. Replacement
// follows WriteDataset: a stored string of another length is recreated.
func (c *Container) WriteText(path, s string) error {
	const op = "write text"
	f, err := c.writable(op, path)
	if err != nil {
		return err
	}
	p, err := absolute(op, path)
	if err != nil {
		return err
	}
	if p == "/" {
		return fail(op, p, ErrTypeMismatch, "the root is a group")
	}
	dt, data := textType(s)
	spec := &native.DatasetSpec{Type: dt}
	t := c.defaultTransfer()
	spec.Layout, _, _ = t.layout(nil, dt.Size)
	ds, err := prepareDataset(f, p, spec)
	if err != nil {
		return wrap(op, p, err)
	}
	defer func() { _ = ds.Close() }()
	return wrap(op, p, ds.Write(context.Background(), data, native.Transfer{}))
}

// ReadText reads the text dataset at path. Variable-length strings are
// not supported.
func (c *Container) ReadText(path string) (string, error) {
	const op = "read text"
	f, err := c.file(op, path)
	if err != nil {
		return "", err
	}
	p, err := absolute(op, path)
	if err != nil {
		return "", err
	}
	ds, err := f.OpenDataset(p)
	if err != nil {
		return "", wrap(op, p, err)
	}
	defer func() { _ = ds.Close() }()
	dt, dims, err := ds.Describe()
	if err != nil {
		return "", wrap(op, p, err)
	}
	if err := checkText(dt, dims); err != nil {
		return "", wrap(op, p, err)
	}
	raw, err := ds.Read(context.Background(), native.Transfer{})
	if err != nil {
		return "", wrap(op, p, err)
	}
	return decodeText(dt, raw), nil
}

// WriteTextAttribute stores s as attribute name of owner, replacing any
// attribute of that name. A missing owner is created as an empty group.
func (c *Container) WriteTextAttribute(name, owner, s string) error {
	dt, data := textType(s)
	return c.putAttribute("write text attribute", owner, &core.Attribute{
		Name:      name,
		Datatype:  dt,
		Dataspace: core.NewDataspace(nil),
		Data:      data,
	})
}

// ReadTextAttribute reads the text attribute name of owner.
func (c *Container) ReadTextAttribute(name, owner string) (string, error) {
	const op = "read text attribute"
	attr, ap, err := c.loadAttribute(op, name, owner)
	if err != nil {
		return "", err
	}
	if err := checkText(attr.Datatype, attr.Dataspace.Dimensions); err != nil {
		return "", wrap(op, ap, err)
	}
	return decodeText(attr.Datatype, attr.Data), nil
}
