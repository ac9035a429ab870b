package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/diwise/levelstore/pkg/document"
	"github.com/diwise/levelstore/pkg/graph/codec"
	"github.com/diwise/levelstore/pkg/graph/errors"
)

type State int

const (
	Raw State = iota
	Linked
	Deleted
)

func (s State) String() string {
	switch s {
	case Linked:
		return "linked"
	case Deleted:
		return "deleted"
	default:
		return "raw"
	}
}

// Object is a typed record with named attributes, backed by an entity node that
// is kept in sync with the decoded values whenever the object is serialized.
type Object struct {
	id      string
	typeTag string

	attrs  []*Attribute
	byName map[string]*Attribute

	state    State
	backRefs map[*Object]int

	store    *Store
	node     *document.Entity
	registry *codec.Registry
}

func newObject(node *document.Entity, registry *codec.Registry) (*Object, error) {
	o := &Object{
		id:       node.ID,
		typeTag:  node.Type,
		byName:   map[string]*Attribute{},
		node:     node,
		registry: registry,
	}

	for _, f := range node.Fields {
		a, err := newAttribute(o, f, o.codecs())
		if err != nil {
			return nil, err
		}

		if _, exists := o.byName[a.name]; exists {
			return nil, errors.NewMalformedDocumentError("object %s: field %s declared twice", o.id, a.name)
		}

		o.attrs = append(o.attrs, a)
		o.byName[a.name] = a
	}

	return o, nil
}

func (o *Object) codecs() *codec.Registry {
	if o.registry == nil {
		return codec.Default
	}
	return o.registry
}

// ID returns the identifier of the object, or the null id once it has been deleted
func (o *Object) ID() string {
	if o.state == Deleted {
		return document.NullID
	}
	return o.id
}

func (o *Object) Type() string {
	return o.typeTag
}

func (o *Object) State() State {
	return o.state
}

func (o *Object) Deleted() bool {
	return o.state == Deleted
}

func (o *Object) String() string {
	return fmt.Sprintf("%s(%s)", o.typeTag, o.ID())
}

// Attribute looks up an attribute by name. Unknown names fail with an error that
// suggests the closest declared name, if any is reasonably close.
func (o *Object) Attribute(name string) (*Attribute, error) {
	if a, ok := o.byName[name]; ok {
		return a, nil
	}

	return nil, errors.NewUnknownAttributeError(o.id, name, closestName(name, o.AttributeNames()))
}

// Attributes returns the attributes in document order
func (o *Object) Attributes() []*Attribute {
	return slices.Clone(o.attrs)
}

func (o *Object) AttributeNames() []string {
	names := make([]string, len(o.attrs))
	for i, a := range o.attrs {
		names[i] = a.name
	}
	return names
}

func (o *Object) Has(name string) bool {
	_, ok := o.byName[name]
	return ok
}

// Get returns the single element of a one element attribute, or every element
// of a multi element attribute.
func (o *Object) Get(name string) (any, error) {
	a, err := o.Attribute(name)
	if err != nil {
		return nil, err
	}

	if a.Len() == 1 {
		return a.Get(0)
	}

	return a.Values(), nil
}

// Set replaces the element of a one element attribute
func (o *Object) Set(name string, v any) error {
	if o.state == Deleted {
		return errors.NewDeletedError(o.id)
	}

	a, err := o.Attribute(name)
	if err != nil {
		return err
	}

	if a.Len() != 1 {
		return errors.NewUnsupportedOperationError(
			fmt.Sprintf("attribute %s of object %s has %d elements, set them by index", name, o.id, a.Len()),
		)
	}

	return a.Set(0, v)
}

// ResolvePointers replaces the raw identifiers of every pointer attribute with the
// objects they denote, looking first in primary and then in companion. Either store
// may be nil. Nothing is modified unless every identifier resolves. Resolving an
// object that is already linked resolves it again against the current targets' ids.
func (o *Object) ResolvePointers(primary, companion *Store) error {
	if o.state == Deleted {
		return errors.NewDeletedError(o.id)
	}

	pending, err := resolveAttributes(o.id, o.attrs, primary, companion)
	if err != nil {
		return err
	}

	o.releasePointers()
	o.bind(pending)
	o.state = Linked

	return nil
}

type resolution struct {
	attr    *Attribute
	targets []*Object
}

// resolveAttributes looks up the targets of every pointer in attrs without touching them
func resolveAttributes(owner string, attrs []*Attribute, primary, companion *Store) ([]resolution, error) {
	pending := []resolution{}

	for _, a := range attrs {
		if a.kind != PointerAttribute {
			continue
		}

		ids := a.identifiers()
		targets := make([]*Object, len(ids))

		for i, id := range ids {
			if id == document.NullID {
				continue
			}

			t := primary.lookup(id)
			if t == nil {
				t = companion.lookup(id)
			}

			if t == nil {
				return nil, errors.NewDanglingReferenceError(owner, a.name, i, id)
			}

			targets[i] = t
		}

		pending = append(pending, resolution{attr: a, targets: targets})
	}

	return pending, nil
}

func (o *Object) bind(pending []resolution) {
	for _, r := range pending {
		r.attr.targets = r.targets
		r.attr.refs = nil
		r.attr.resolved = true

		for _, t := range r.targets {
			if t != nil {
				t.addBackReference(o)
			}
		}
	}
}

// ReferencedBy returns the linked objects holding at least one pointer to o, ordered by id
func (o *Object) ReferencedBy() []*Object {
	referrers := make([]*Object, 0, len(o.backRefs))
	for r := range o.backRefs {
		referrers = append(referrers, r)
	}

	slices.SortFunc(referrers, func(a, b *Object) int {
		return strings.Compare(a.id, b.id)
	})

	return referrers
}

func (o *Object) addBackReference(from *Object) {
	if o.backRefs == nil {
		o.backRefs = map[*Object]int{}
	}
	o.backRefs[from]++
}

func (o *Object) removeBackReference(from *Object) {
	n := o.backRefs[from] - 1
	if n <= 0 {
		delete(o.backRefs, from)
		return
	}
	o.backRefs[from] = n
}

// releasePointers drops the back references held by the resolved pointers of o
func (o *Object) releasePointers() {
	for _, a := range o.attrs {
		if !a.resolved {
			continue
		}

		for _, t := range a.targets {
			if t != nil {
				t.removeBackReference(o)
			}
		}
	}
}

// nullPointersTo sets every pointer of o that targets one of doomed to null. Raw
// pointers are matched on the identifiers of doomed.
func (o *Object) nullPointersTo(doomed map[*Object]bool) int {
	count := 0

	var ids map[string]bool

	for _, a := range o.attrs {
		if a.kind != PointerAttribute {
			continue
		}

		if !a.resolved {
			if ids == nil {
				ids = make(map[string]bool, len(doomed))
				for d := range doomed {
					ids[d.id] = true
				}
			}

			for i, ref := range a.refs {
				if ids[ref] {
					a.refs[i] = document.NullID
					count++
				}
			}

			continue
		}

		for i, t := range a.targets {
			if t != nil && doomed[t] {
				a.replace(i, nil)
				count++
			}
		}
	}

	return count
}

// remapPointers redirects every resolved pointer of o that targets from to to
func (o *Object) remapPointers(from, to *Object) {
	for _, a := range o.attrs {
		if !a.resolved {
			continue
		}

		for i, t := range a.targets {
			if t == from {
				a.replace(i, to)
			}
		}
	}
}

func (o *Object) canReach(target *Object) bool {
	if target.state == Deleted || o.store == nil {
		return false
	}

	return o.store.owns(target) || (o.store.companion != nil && o.store.companion.owns(target))
}

// Transform returns the transform matrix of spatial objects, or nil
func (o *Object) Transform() *codec.Mat4 {
	name := DefaultTransformAttribute
	if o.store != nil {
		name = o.store.transformAttr
	}

	a, ok := o.byName[name]
	if !ok || a.kind != ValueAttribute || a.Len() != 1 {
		return nil
	}

	m, ok := a.values[0].(codec.Mat4)
	if !ok {
		return nil
	}

	return &m
}

// declaresTransform reports whether o has a matrix valued attribute called name
func (o *Object) declaresTransform(name string) bool {
	a, ok := o.byName[name]
	if !ok || a.kind != ValueAttribute {
		return false
	}

	return o.codecs().Canonical(a.typeTag) == codec.Matrix4x4
}

// sync writes the current attribute values back into the entity node
func (o *Object) sync() error {
	registry := o.codecs()

	for _, a := range o.attrs {
		texts, err := a.encodeItems(registry)
		if err != nil {
			return err
		}

		a.field.Items = texts
		a.field.Elements = len(texts)
	}

	o.node.ID = o.id
	o.node.Type = o.typeTag

	return nil
}

// Serialize returns the entity node of o, including any changes made to its attributes
func (o *Object) Serialize() ([]byte, error) {
	if err := o.sync(); err != nil {
		return nil, err
	}

	return o.node.Marshal()
}

// Clone returns an unregistered raw copy of o using a new id. Pointers of the
// copy refer to the same ids as the pointers of o.
func (o *Object) Clone(newID string) (*Object, error) {
	b, err := o.Serialize()
	if err != nil {
		return nil, err
	}

	node, err := document.ParseEntity(b)
	if err != nil {
		return nil, err
	}

	node.ID = newID

	return newObject(node, o.registry)
}

// UpdateFromText replaces every attribute of o with the ones described by fragment, a
// serialized entity with the same id and type. When o belongs to a linked store the
// new pointers are resolved before anything is replaced, so a fragment that refers to
// an unknown object leaves o as it was. Otherwise o is left raw.
func (o *Object) UpdateFromText(fragment []byte) error {
	u, err := o.prepareUpdate(fragment)
	if err != nil {
		return err
	}

	u.commit()

	return nil
}

// update is a decoded, and when needed resolved, replacement of the attributes of obj
type update struct {
	obj     *Object
	node    *document.Entity
	fresh   *Object
	linked  bool
	pending []resolution
}

func (o *Object) prepareUpdate(fragment []byte) (*update, error) {
	if o.state == Deleted {
		return nil, errors.NewDeletedError(o.id)
	}

	node, err := document.ParseEntity(fragment)
	if err != nil {
		return nil, err
	}

	if node.ID != o.id {
		return nil, errors.NewMalformedDocumentError("fragment describes object %s, not %s", node.ID, o.id)
	}

	if node.Type != o.typeTag {
		return nil, errors.NewMalformedDocumentError("fragment changes the type of object %s from %s to %s", o.id, o.typeTag, node.Type)
	}

	fresh, err := newObject(node, o.registry)
	if err != nil {
		return nil, err
	}

	u := &update{obj: o, node: node, fresh: fresh}

	if o.store != nil {
		fresh.store = o.store
		if fresh.declaresTransform(o.store.transformAttr) && fresh.Transform() == nil {
			return nil, errors.NewMalformedDocumentError("object %s: transform %s must hold exactly one matrix", o.id, o.store.transformAttr)
		}

		if o.store.linked {
			u.pending, err = resolveAttributes(o.id, fresh.attrs, o.store, o.store.companion)
			if err != nil {
				return nil, err
			}
			u.linked = true
		}
	}

	return u, nil
}

func (u *update) commit() {
	o := u.obj

	o.releasePointers()

	for _, a := range u.fresh.attrs {
		a.owner = o
	}

	o.attrs = u.fresh.attrs
	o.byName = u.fresh.byName
	o.node.Attrs = u.node.Attrs
	o.node.Fields = u.node.Fields
	o.state = Raw

	if u.linked {
		o.bind(u.pending)
		o.state = Linked
	}

	if o.store != nil {
		o.store.reindex(o)
	}
}
