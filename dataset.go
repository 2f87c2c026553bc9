package h5store

import (
	"errors"
	"fmt"
	"slices"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/native"
)

// ExistsDataset reports whether path names a dataset.
func (c *Container) ExistsDataset(path string) (bool, error) {
	return c.exists("exists dataset", path, core.ObjectTypeDataset)
}

// describeDataset returns the stored type and dimensions of the dataset
// at path.
func (c *Container) describeDataset(op, path string) (*core.DatatypeMessage, []uint64, error) {
	f, err := c.file(op, path)
	if err != nil {
		return nil, nil, err
	}
	p, err := absolute(op, path)
	if err != nil {
		return nil, nil, err
	}
	ds, err := f.OpenDataset(p)
	if err != nil {
		return nil, nil, wrap(op, p, err)
	}
	defer func() { _ = ds.Close() }()
	dt, dims, err := ds.Describe()
	if err != nil {
		return nil, nil, wrap(op, p, err)
	}
	return dt, dims, nil
}

// DatasetShape returns the stored extents of the dataset at path, empty
// for a scalar. Complex values count their trailing dimension of 2.
func (c *Container) DatasetShape(path string) ([]uint64, error) {
	_, dims, err := c.describeDataset("dataset shape", path)
	if err != nil {
		return nil, err
	}
	return append([]uint64{}, dims...), nil
}

// DatasetType returns the element type the dataset at path reads as
// without loss.
func (c *Container) DatasetType(path string) (DataType, error) {
	dt, _, err := c.describeDataset("dataset type", path)
	if err != nil {
		return Unknown, err
	}
	return nativeType(dt), nil
}

// ReadDataset reads the whole dataset at path into out, which is resized
// to the stored shape. Stored integers and floats of any width or byte
// order convert to T. A complex T needs a trailing stored dimension of 2.
func ReadDataset[T Element](c *Container, path string, out *Array[T], opts ...TransferOption) (err error) {
	const op = "read dataset"
	f, err := c.file(op, path)
	if err != nil {
		return err
	}
	p, err := absolute(op, path)
	if err != nil {
		return err
	}
	if out == nil {
		return fail(op, p, ErrMalformed, "nil output array")
	}
	t, err := c.newTransfer(op, p, opts)
	if err != nil {
		return err
	}
	tr := newTracker(t.progress)
	defer func() { tr.done(err) }()

	ds, err := f.OpenDataset(p)
	if err != nil {
		return wrap(op, p, err)
	}
	defer func() { _ = ds.Close() }()
	dt, dims, err := ds.Describe()
	if err != nil {
		return wrap(op, p, err)
	}
	if tag := nativeType(dt); tag == Text || tag == Unknown {
		return fail(op, p, ErrTypeMismatch, "stored %s cannot be read as %s", dt, TypeOf[T]())
	}
	shape, err := describe[T]().valueShape(dims)
	if err != nil {
		return wrap(op, p, err)
	}
	if err := tr.checkpoint(op, p); err != nil {
		return err
	}
	raw, err := ds.Read(tr.ctx, native.Transfer{Workers: t.workers, Progress: tr.span(0, 1)})
	if err != nil {
		return wrap(op, p, err)
	}
	if err := out.resize(shape); err != nil {
		return wrap(op, p, err)
	}
	return wrap(op, p, coerce(out.data, dt, raw))
}

// WriteDataset stores v as the dataset at path, creating missing groups
// above it. An existing dataset of the same stored type and shape is
// overwritten in place; any other dataset there is replaced.
//
// Datasets smaller than SmallDatasetThreshold and scalars are stored
// unchunked and uncompressed. Larger ones are chunked one element deep
// along their leading dimensions and compressed as the options request.
func WriteDataset[T Element](c *Container, path string, v *Array[T], opts ...TransferOption) (err error) {
	const op = "write dataset"
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
	if v == nil {
		return fail(op, p, ErrMalformed, "nil array")
	}
	t, err := c.newTransfer(op, p, opts)
	if err != nil {
		return err
	}
	tr := newTracker(t.progress)
	defer func() { tr.done(err) }()
	if err := tr.checkpoint(op, p); err != nil {
		return err
	}

	d := describe[T]()
	spec := &native.DatasetSpec{Type: d.tag.datatype(), Dims: d.diskShape(v.shape)}
	spec.Layout, spec.Chunks, spec.Pipeline = t.layout(spec.Dims, spec.Type.Size)
	ds, err := prepareDataset(f, p, spec)
	if err != nil {
		return wrap(op, p, err)
	}
	defer func() { _ = ds.Close() }()
	err = ds.Write(tr.ctx, encode(v.data), native.Transfer{Workers: t.workers, Progress: tr.span(0, 1)})
	return wrap(op, p, err)
}

// prepareDataset returns the dataset at p ready to take data of spec's
// type and shape: the existing one if both match, otherwise a new one
// created from spec after unlinking whatever dataset was there.
func prepareDataset(f *native.File, p string, spec *native.DatasetSpec) (*native.Dataset, error) {
	parent, name := split(p)
	info, err := f.Stat(p)
	switch {
	case errors.Is(err, native.ErrNotFound):
		if err := ensureGroup(f, parent); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case info.Kind != core.ObjectTypeDataset:
		return nil, fmt.Errorf("%s is a %s: %w", p, info.Kind, native.ErrNotDataset)
	default:
		ds, err := f.OpenDataset(p)
		if err != nil {
			return nil, err
		}
		dt, dims, err := ds.Describe()
		if err == nil && dt.Equal(spec.Type) && slices.Equal(dims, spec.Dims) {
			return ds, nil
		}
		_ = ds.Close()
		if err := unlink(f, p); err != nil {
			return nil, err
		}
	}
	g, err := f.OpenGroup(parent)
	if err != nil {
		return nil, err
	}
	defer func() { _ = g.Close() }()
	return g.CreateDataset(name, spec)
}

// DeleteDataset unlinks the dataset at path. The file does not shrink:
// the space the dataset used is not reclaimed.
func (c *Container) DeleteDataset(path string) error {
	const op = "delete dataset"
	f, err := c.writable(op, path)
	if err != nil {
		return err
	}
	p, err := absolute(op, path)
	if err != nil {
		return err
	}
	info, err := f.Stat(p)
	if err != nil {
		return wrap(op, p, err)
	}
	if info.Kind != core.ObjectTypeDataset {
		return fail(op, p, ErrTypeMismatch, "%s is a %s", p, info.Kind)
	}
	return wrap(op, p, unlink(f, p))
}
