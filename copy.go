package h5store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/native"
)

// CopyObject copies the group or dataset at srcPath of src to dstPath of
// dst, which may be the same Container. Groups are copied recursively in
// name order with their attributes. Soft links are copied as links.
//
// Nothing in dst is overwritten or merged into: an existing object at
// dstPath fails with ErrAlreadyExists, even when both are groups. Missing
// groups above dstPath are created.
//
// Datasets keep their layout, chunk shape and filters unless
// WithRecompress selects a level, in which case they are laid out as
// WriteDataset would with WithCompression(level). WithCodec, WithShuffle
// and WithFletcher32 then apply as well.
//
// The copy is not atomic. If it fails part way the objects copied so far
// stay in dst and the error also matches ErrPartialCopy.
func CopyObject(src *Container, srcPath string, dst *Container, dstPath string, opts ...TransferOption) (err error) {
	const op = "copy"
	sf, err := src.file(op, srcPath)
	if err != nil {
		return err
	}
	df, err := dst.writable(op, dstPath)
	if err != nil {
		return err
	}
	sp, err := absolute(op, srcPath)
	if err != nil {
		return err
	}
	dp, err := absolute(op, dstPath)
	if err != nil {
		return err
	}
	info, err := sf.Stat(sp)
	if err != nil {
		return wrap(op, sp, err)
	}
	if sf.SameFile(df) && within(dp, info.Path) {
		return fail(op, sp, ErrMalformed, "cannot copy %s into itself at %s", info.Path, dp)
	}

	t, err := dst.newTransfer(op, dp, opts)
	if err != nil {
		return err
	}
	cp := &copier{src: sf, dst: df, t: t, tr: newTracker(t.progress)}
	defer func() { cp.tr.done(err) }()
	if cp.total, err = countDatasets(sf, info.Path, info.Kind); err != nil {
		return wrap(op, sp, err)
	}
	err = cp.finish(op, sp, cp.object(info.Path, dp, info.Kind))
	dst.log.LogCopy(context.Background(), src.name+":"+sp, dst.name+":"+dp, cp.created, err)
	return err
}

// within reports whether p is dir or lies below it.
func within(p, dir string) bool {
	return dir == "/" || p == dir || strings.HasPrefix(p, dir+"/")
}

// countDatasets counts the datasets a copy of p transfers.
func countDatasets(f *native.File, p string, kind core.ObjectType) (int, error) {
	switch kind {
	case core.ObjectTypeDataset:
		return 1, nil
	case core.ObjectTypeGroup:
	default:
		return 0, nil
	}
	g, err := f.OpenGroup(p)
	if err != nil {
		return 0, err
	}
	defer func() { _ = g.Close() }()
	children, err := g.Children()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ch := range children {
		if ch.Type != core.LinkHard {
			continue
		}
		k, err := countDatasets(f, join(p, ch.Name), ch.Kind)
		if err != nil {
			return 0, err
		}
		n += k
	}
	return n, nil
}

// copier carries the state of one CopyObject call.
type copier struct {
	src, dst *native.File
	t        transfer
	tr       *tracker

	total   int // datasets to copy
	copied  int // datasets copied
	created int // objects created in dst
}

// finish turns err into an *Error, marking partial copies.
func (cp *copier) finish(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Op: op, Path: path, Kind: classify(err), Err: err}
	}
	if cp.created == 0 {
		return e
	}
	return &Error{Op: e.Op, Path: e.Path, Kind: e.Kind, Err: errors.Join(e.Err, ErrPartialCopy)}
}

func (cp *copier) object(sp, dp string, kind core.ObjectType) error {
	if err := cp.tr.checkpoint("copy", sp); err != nil {
		return err
	}
	switch kind {
	case core.ObjectTypeGroup:
		return cp.group(sp, dp)
	case core.ObjectTypeDataset:
		return cp.dataset(sp, dp)
	}
	return fmt.Errorf("%s: copying a %s: %w", sp, kind, ErrUnsupported)
}

// claim fails with ErrExists if dp exists, and creates the groups above
// it.
func (cp *copier) claim(dp string) error {
	_, err := cp.dst.Stat(dp)
	switch {
	case err == nil:
		return fmt.Errorf("%s: %w", dp, native.ErrExists)
	case !errors.Is(err, native.ErrNotFound):
		return err
	}
	parent, _ := split(dp)
	return ensureGroup(cp.dst, parent)
}

func (cp *copier) group(sp, dp string) error {
	if err := cp.claim(dp); err != nil {
		return err
	}
	parent, name := split(dp)
	if err := createChild(cp.dst, parent, name); err != nil {
		return err
	}
	cp.created++
	if err := cp.attributes(sp, dp); err != nil {
		return err
	}

	g, err := cp.src.OpenGroup(sp)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close() }()
	children, err := g.Children()
	if err != nil {
		return err
	}
	for _, ch := range children {
		switch ch.Type {
		case core.LinkHard:
			err = cp.object(join(sp, ch.Name), join(dp, ch.Name), ch.Kind)
		case core.LinkSoft:
			err = cp.softLink(dp, ch.Name, ch.Target)
		default:
			err = fmt.Errorf("%s: %s link: %w", join(sp, ch.Name), ch.Type, ErrUnsupported)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (cp *copier) softLink(parent, name, target string) error {
	g, err := cp.dst.OpenGroup(parent)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close() }()
	if err := g.CreateSoftLink(name, target); err != nil {
		return err
	}
	cp.created++
	return nil
}

// copyable rejects types whose raw bytes point into the source file.
func copyable(dt *core.DatatypeMessage) error {
	switch dt.Class {
	case core.DatatypeVarLen, core.DatatypeReference:
		return fmt.Errorf("copying %s data: %w", dt, ErrUnsupported)
	}
	return nil
}

func (cp *copier) dataset(sp, dp string) error {
	if err := cp.claim(dp); err != nil {
		return err
	}
	sds, err := cp.src.OpenDataset(sp)
	if err != nil {
		return err
	}
	defer func() { _ = sds.Close() }()
	spec, err := sds.Spec()
	if err != nil {
		return err
	}
	if err := copyable(spec.Type); err != nil {
		return fmt.Errorf("%s: %w", sp, err)
	}
	if cp.t.recompress >= 0 {
		fresh := transfer{level: cp.t.recompress, codec: cp.t.codec, shuffle: cp.t.shuffle, fletcher: cp.t.fletcher}
		spec.Layout, spec.Chunks, spec.Pipeline = fresh.layout(spec.Dims, spec.Type.Size)
	}

	lo := float64(cp.copied) / float64(max(cp.total, 1))
	hi := float64(cp.copied+1) / float64(max(cp.total, 1))
	mid := (lo + hi) / 2
	raw, err := sds.Read(cp.tr.ctx, native.Transfer{Workers: cp.t.workers, Progress: cp.tr.span(lo, mid)})
	if err != nil {
		return err
	}

	parent, name := split(dp)
	g, err := cp.dst.OpenGroup(parent)
	if err != nil {
		return err
	}
	defer func() { _ = g.Close() }()
	dds, err := g.CreateDataset(name, spec)
	if err != nil {
		return err
	}
	defer func() { _ = dds.Close() }()
	cp.created++
	if err := dds.Write(cp.tr.ctx, raw, native.Transfer{Workers: cp.t.workers, Progress: cp.tr.span(mid, hi)}); err != nil {
		return err
	}
	cp.copied++
	return cp.attributes(sp, dp)
}

// attributes copies every attribute of sp to dp verbatim.
func (cp *copier) attributes(sp, dp string) error {
	so, err := cp.src.OpenObject(sp)
	if err != nil {
		return err
	}
	defer func() { _ = so.Close() }()
	attrs, err := so.Attributes()
	if err != nil || len(attrs) == 0 {
		return err
	}
	do, err := cp.dst.OpenObject(dp)
	if err != nil {
		return err
	}
	defer func() { _ = do.Close() }()
	for _, a := range attrs {
		if err := copyable(a.Datatype); err != nil {
			return fmt.Errorf("%s: %w", attrPath(sp, a.Name), err)
		}
		if err := do.CreateAttribute(a); err != nil {
			return fmt.Errorf("%s: %w", attrPath(dp, a.Name), err)
		}
		cp.created++
	}
	return nil
}
