package graph

import (
	"fmt"

	"github.com/diwise/levelstore/pkg/document"
	"github.com/diwise/levelstore/pkg/graph/codec"
)

// Builder collects the fields of an object under construction
type Builder struct {
	node     *document.Entity
	registry *codec.Registry
	err      error
}

type ObjectDecoratorFunc func(b *Builder)

// New creates an unregistered raw object. Decorators are applied in order.
func New(objectID, objectType string, decorators ...ObjectDecoratorFunc) (*Object, error) {
	b := &Builder{
		node: document.NewEntity(objectType, objectID),
	}

	for _, decorator := range decorators {
		decorator(b)
	}

	if b.err != nil {
		return nil, b.err
	}

	if objectID == "" || objectID == document.NullID {
		return nil, fmt.Errorf("%q is not a valid object id", objectID)
	}

	return newObject(b.node, b.registry)
}

// Codecs makes the object encode and decode its values with r
func Codecs(r *codec.Registry) ObjectDecoratorFunc {
	return func(b *Builder) {
		b.registry = r
	}
}

func (b *Builder) codecs() *codec.Registry {
	if b.registry == nil {
		return codec.Default
	}
	return b.registry
}

func Value(name, typeTag string, values ...any) ObjectDecoratorFunc {
	return func(b *Builder) {
		if b.err != nil {
			return
		}

		items := make([]string, len(values))

		for i, v := range values {
			text, err := b.codecs().Encode(typeTag, v)
			if err != nil {
				b.err = fmt.Errorf("attribute %s[%d]: %w", name, i, err)
				return
			}
			items[i] = text
		}

		b.node.Fields = append(b.node.Fields, document.NewField(false, name, typeTag, items))
	}
}

// Pointer adds a pointer attribute referring to ids. Use document.NullID for null.
func Pointer(name, typeTag string, ids ...string) ObjectDecoratorFunc {
	return func(b *Builder) {
		b.node.Fields = append(b.node.Fields, document.NewField(true, name, typeTag, ids))
	}
}

func Text(name, value string) ObjectDecoratorFunc {
	return Value(name, codec.String, value)
}

func Number(name string, value float64) ObjectDecoratorFunc {
	return Value(name, codec.Float, value)
}

func Flag(name string, value bool) ObjectDecoratorFunc {
	return Value(name, codec.Bool, value)
}

// Ref adds a single element pointer to target, or a null pointer if target is nil
func Ref(name, typeTag string, target *Object) ObjectDecoratorFunc {
	id := document.NullID
	if target != nil {
		id = target.ID()
	}
	return Pointer(name, typeTag, id)
}

// Transform adds the transform matrix that makes an object spatial
func Transform(m codec.Mat4) ObjectDecoratorFunc {
	return Value(DefaultTransformAttribute, codec.Matrix4x4, m)
}
