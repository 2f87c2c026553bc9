package native

import (
	"fmt"

	"github.com/scigolib/h5store/internal/core"
	"github.com/scigolib/h5store/internal/utils"
)

// maxAttributeMessage is the largest attribute a compact header message holds.
const maxAttributeMessage = 0xFFFF

// Attribute is a handle on one attribute of a group or dataset.
type Attribute struct {
	*handle
	owner string
	name  string
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.name }

// Owner returns the canonical path of the object carrying the attribute.
func (a *Attribute) Owner() string { return a.owner }

// Read loads the attribute's datatype, dataspace and raw value.
func (a *Attribute) Read() (*core.Attribute, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	o := Object{handle: a.handle, path: a.owner}
	_, h, err := o.load()
	if err != nil {
		return nil, err
	}
	attr, _, err := a.file.s.findAttribute(h, a.name)
	return attr, err
}

// attributes parses every compact attribute of h.
func (s *store) attributes(h *core.ObjectHeader) ([]*core.Attribute, error) {
	if m := h.Find(core.MsgAttributeInfo); m != nil {
		ai, err := core.ParseAttributeInfoMessage(m.Data, s.sb.Sizes)
		if err != nil {
			return nil, err
		}
		if ai.Dense() {
			return nil, utils.Unsupportedf("dense attribute storage")
		}
	}
	msgs := h.FindAll(core.MsgAttribute)
	out := make([]*core.Attribute, 0, len(msgs))
	for _, m := range msgs {
		attr, err := core.ParseAttributeMessage(m.Data, s.sb.Sizes)
		if err != nil {
			return nil, err
		}
		out = append(out, attr)
	}
	return out, nil
}

func (s *store) findAttribute(h *core.ObjectHeader, name string) (*core.Attribute, *core.HeaderMessage, error) {
	attrs, err := s.attributes(h)
	if err != nil {
		return nil, nil, err
	}
	for i, attr := range attrs {
		if attr.Name == name {
			return attr, h.FindAll(core.MsgAttribute)[i], nil
		}
	}
	return nil, nil, fmt.Errorf("attribute %q: %w", name, ErrNotFound)
}

// Attributes returns every attribute in header order.
func (o *Object) Attributes() ([]*core.Attribute, error) {
	_, h, err := o.load()
	if err != nil {
		return nil, err
	}
	return o.file.s.attributes(h)
}

// AttributeNames returns the attribute names in header order.
func (o *Object) AttributeNames() ([]string, error) {
	attrs, err := o.Attributes()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	return names, nil
}

// OpenAttribute opens the attribute called name.
func (o *Object) OpenAttribute(name string) (*Attribute, error) {
	_, h, err := o.load()
	if err != nil {
		return nil, err
	}
	if _, _, err := o.file.s.findAttribute(h, name); err != nil {
		return nil, err
	}
	hd, err := o.file.newHandle()
	if err != nil {
		return nil, err
	}
	return &Attribute{handle: hd, owner: o.path, name: name}, nil
}

// CreateAttribute adds attr, failing with ErrExists if the name is taken.
func (o *Object) CreateAttribute(attr *core.Attribute) error {
	return o.putAttribute(attr, false)
}

// WriteAttribute adds attr, replacing any attribute of the same name.
func (o *Object) WriteAttribute(attr *core.Attribute) error {
	return o.putAttribute(attr, true)
}

func (o *Object) putAttribute(attr *core.Attribute, replace bool) error {
	if err := validAttributeName(attr.Name); err != nil {
		return err
	}
	if err := o.file.checkWritable(); err != nil {
		return err
	}
	loc, h, err := o.load()
	if err != nil {
		return err
	}
	s := o.file.s
	data := attr.Encode(s.sb.Sizes)
	if len(data) > maxAttributeMessage {
		return utils.Unsupportedf("attribute %q of %d bytes needs dense storage", attr.Name, len(data))
	}

	_, existing, err := s.findAttribute(h, attr.Name)
	switch {
	case err == nil && !replace:
		return fmt.Errorf("attribute %q: %w", attr.Name, ErrExists)
	case err == nil:
		h.Remove(func(m *core.HeaderMessage) bool { return m == existing })
	case !isNotFound(err):
		return err
	}
	h.Add(core.MsgAttribute, 0, data)
	return s.commit(loc.path, h)
}

// DeleteAttribute removes the attribute called name.
func (o *Object) DeleteAttribute(name string) error {
	if err := o.file.checkWritable(); err != nil {
		return err
	}
	loc, h, err := o.load()
	if err != nil {
		return err
	}
	s := o.file.s
	_, existing, err := s.findAttribute(h, name)
	if err != nil {
		return err
	}
	h.Remove(func(m *core.HeaderMessage) bool { return m == existing })
	return s.commit(loc.path, h)
}

func validAttributeName(name string) error {
	if name == "" {
		return fmt.Errorf("empty attribute name: %w", ErrInvalidName)
	}
	return nil
}
