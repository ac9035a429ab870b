package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/diwise/levelstore/pkg/document"
	"github.com/diwise/levelstore/pkg/graph/codec"
	"github.com/diwise/levelstore/pkg/graph/errors"
)

type AttributeKind int

const (
	ValueAttribute AttributeKind = iota
	PointerAttribute
)

func (k AttributeKind) String() string {
	if k == PointerAttribute {
		return "Pointer"
	}
	return "Value"
}

// Attribute is a fixed size array of elements attached to an Object. Value attributes
// hold decoded values. Pointer attributes hold raw identifiers until the owning object
// has been linked, and references to other objects (nil for the null pointer) after that.
type Attribute struct {
	kind    AttributeKind
	name    string
	typeTag string
	owner   *Object
	field   *document.Field

	values []any

	refs     []string
	targets  []*Object
	resolved bool
}

func newAttribute(owner *Object, f *document.Field, registry *codec.Registry) (*Attribute, error) {
	a := &Attribute{
		name:    f.Name,
		typeTag: f.Type,
		owner:   owner,
		field:   f,
	}

	if f.IsPointer() {
		a.kind = PointerAttribute
		a.refs = make([]string, len(f.Items))
		for i, text := range f.Items {
			a.refs[i] = strings.TrimSpace(text)
		}
		return a, nil
	}

	a.kind = ValueAttribute
	a.values = make([]any, len(f.Items))

	for i, text := range f.Items {
		v, err := registry.Decode(f.Type, text)
		if err != nil {
			return nil, fmt.Errorf("object %s: attribute %s[%d]: %w", owner.id, f.Name, i, err)
		}
		a.values[i] = v
	}

	return a, nil
}

func (a *Attribute) Name() string {
	return a.name
}

func (a *Attribute) Kind() AttributeKind {
	return a.kind
}

func (a *Attribute) Type() string {
	return a.typeTag
}

func (a *Attribute) IsPointer() bool {
	return a.kind == PointerAttribute
}

// Len returns the element count declared by the source document
func (a *Attribute) Len() int {
	switch {
	case a.kind == ValueAttribute:
		return len(a.values)
	case a.resolved:
		return len(a.targets)
	default:
		return len(a.refs)
	}
}

func (a *Attribute) checkIndex(i int) error {
	if i < 0 || i >= a.Len() {
		return fmt.Errorf("object %s: index %d out of range for %s with %d elements", a.owner.id, i, a.name, a.Len())
	}
	return nil
}

// Get returns element i. For pointer attributes that is an *Object or nil once linked,
// and the raw identifier string before that.
func (a *Attribute) Get(i int) (any, error) {
	if err := a.checkIndex(i); err != nil {
		return nil, err
	}

	switch {
	case a.kind == ValueAttribute:
		return a.values[i], nil
	case a.resolved:
		if t := a.targets[i]; t != nil {
			return t, nil
		}
		return nil, nil
	default:
		return a.refs[i], nil
	}
}

// Values returns a copy of every element, see Get
func (a *Attribute) Values() []any {
	values := make([]any, a.Len())
	for i := range values {
		values[i], _ = a.Get(i)
	}
	return values
}

// Targets returns the resolved pointer targets, or nil if the attribute is not a
// resolved pointer
func (a *Attribute) Targets() []*Object {
	if !a.resolved {
		return nil
	}
	return slices.Clone(a.targets)
}

// Set replaces element i. Values are validated by encoding them with the attribute's
// codec and are stored in their decoded (canonical) form. Pointers accept an *Object
// registered in the owner's store or its companion, or nil.
func (a *Attribute) Set(i int, v any) error {
	if err := a.checkIndex(i); err != nil {
		return err
	}

	if a.kind == ValueAttribute {
		registry := a.owner.codecs()

		text, err := registry.Encode(a.typeTag, v)
		if err != nil {
			return fmt.Errorf("object %s: attribute %s[%d]: %w", a.owner.id, a.name, i, err)
		}

		decoded, err := registry.Decode(a.typeTag, text)
		if err != nil {
			return fmt.Errorf("object %s: attribute %s[%d]: %w", a.owner.id, a.name, i, err)
		}

		a.values[i] = decoded
		return nil
	}

	if !a.resolved {
		return errors.NewNotLinkedError(a.owner.id)
	}

	var target *Object

	switch t := v.(type) {
	case nil:
	case *Object:
		target = t
	default:
		return errors.NewUnsupportedOperationError(
			fmt.Sprintf("pointer %s of object %s cannot hold a %T", a.name, a.owner.id, v),
		)
	}

	if target != nil && !a.owner.canReach(target) {
		return errors.NewReferenceNotRegisteredError(target.ID())
	}

	a.replace(i, target)

	return nil
}

func (a *Attribute) Insert(i int, v any) error {
	return errors.NewUnsupportedOperationError(
		fmt.Sprintf("attribute %s of object %s has a fixed number of elements", a.name, a.owner.id),
	)
}

func (a *Attribute) Remove(i int) error {
	return errors.NewUnsupportedOperationError(
		fmt.Sprintf("attribute %s of object %s has a fixed number of elements", a.name, a.owner.id),
	)
}

func (a *Attribute) replace(i int, target *Object) {
	if old := a.targets[i]; old != nil {
		old.removeBackReference(a.owner)
	}

	a.targets[i] = target

	if target != nil {
		target.addBackReference(a.owner)
	}
}

// identifiers returns the ids this pointer attribute refers to, in element order
func (a *Attribute) identifiers() []string {
	if !a.resolved {
		return slices.Clone(a.refs)
	}

	ids := make([]string, len(a.targets))
	for i, t := range a.targets {
		if t == nil {
			ids[i] = document.NullID
		} else {
			ids[i] = t.ID()
		}
	}

	return ids
}

func (a *Attribute) encodeItems(registry *codec.Registry) ([]string, error) {
	if a.kind == PointerAttribute {
		return a.identifiers(), nil
	}

	texts := make([]string, len(a.values))
	for i, v := range a.values {
		text, err := registry.Encode(a.typeTag, v)
		if err != nil {
			return nil, fmt.Errorf("object %s: attribute %s[%d]: %w", a.owner.id, a.name, i, err)
		}
		texts[i] = text
	}

	return texts, nil
}
