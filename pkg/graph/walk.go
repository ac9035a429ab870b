package graph

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"

	"github.com/diwise/levelstore/pkg/graph/errors"
)

// PathElement names an attribute, and an element of it when Index is not -1
type PathElement struct {
	Name  string
	Index int
}

// Path addresses a field reachable from an object by following pointers
type Path []PathElement

func (p Path) String() string {
	sb := strings.Builder{}

	for i, el := range p {
		if i > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(el.Name)
		if el.Index >= 0 {
			fmt.Fprintf(&sb, "[%d]", el.Index)
		}
	}

	return sb.String()
}

func (p Path) extend(name string, index int) Path {
	return append(slices.Clip(p), PathElement{Name: name, Index: index})
}

// IterateFieldsRecursive yields the path of every field reachable from o. At each level
// value attributes come before pointer attributes, elements of multi element pointers
// are yielded one by one, and every object is descended into at most once.
func IterateFieldsRecursive(o *Object) iter.Seq[Path] {
	return func(yield func(Path) bool) {
		walk(o, Path{}, map[string]bool{}, yield)
	}
}

func walk(o *Object, prefix Path, visited map[string]bool, yield func(Path) bool) bool {
	visited[o.ID()] = true

	for _, a := range o.attrs {
		if a.kind == ValueAttribute && !yield(prefix.extend(a.name, -1)) {
			return false
		}
	}

	for _, a := range o.attrs {
		if a.kind != PointerAttribute {
			continue
		}

		single := a.Len() == 1

		for i := range a.Len() {
			p := prefix.extend(a.name, i)
			if single {
				p = prefix.extend(a.name, -1)
			}

			if !yield(p) {
				return false
			}

			if !a.resolved {
				continue
			}

			if t := a.targets[i]; t != nil && !visited[t.ID()] {
				if !walk(t, p, visited, yield) {
					return false
				}
			}
		}
	}

	return true
}

// Resolve follows path from o and returns the value it ends at
func Resolve(o *Object, path Path) (any, error) {
	var current any = o

	for i, el := range path {
		obj, ok := current.(*Object)
		if !ok || obj == nil {
			return nil, errors.NewNotFoundError(fmt.Sprintf("%s does not lead to an object", path[:i]))
		}

		if el.Index < 0 {
			v, err := obj.Get(el.Name)
			if err != nil {
				return nil, err
			}
			current = v
			continue
		}

		a, err := obj.Attribute(el.Name)
		if err != nil {
			return nil, err
		}

		current, err = a.Get(el.Index)
		if err != nil {
			return nil, err
		}
	}

	return current, nil
}

type Difference struct {
	Path Path
	A    any
	B    any
}

// Diff compares two objects of the same type field by field, following pointers.
// Paths at which both objects hold an object are not compared, since the fields
// below them are.
func Diff(a, b *Object) ([]Difference, error) {
	if a.typeTag != b.typeTag {
		return nil, errors.NewTypeMismatchError(a.typeTag, b.typeTag)
	}

	diffs := []Difference{}

	for p := range IterateFieldsRecursive(a) {
		va, err := Resolve(a, p)
		if err != nil {
			return nil, err
		}

		vb, err := Resolve(b, p)
		if err != nil {
			// report the field that b lacks, but not everything below it
			if parent, perr := Resolve(b, p[:len(p)-1]); perr == nil {
				if _, ok := parent.(*Object); ok {
					diffs = append(diffs, Difference{Path: p, A: va})
				}
			}
			continue
		}

		_, aIsObject := va.(*Object)
		_, bIsObject := vb.(*Object)

		if aIsObject && bIsObject {
			continue
		}

		if !sameValue(va, vb) {
			diffs = append(diffs, Difference{Path: p, A: va, B: vb})
		}
	}

	return diffs, nil
}

func Same(a, b *Object) (bool, error) {
	diffs, err := Diff(a, b)
	if err != nil {
		return false, err
	}
	return len(diffs) == 0, nil
}

func sameValue(a, b any) bool {
	la, aIsList := a.([]any)
	lb, bIsList := b.([]any)

	if aIsList || bIsList {
		return aIsList && bIsList && slices.EqualFunc(la, lb, sameValue)
	}

	_, aIsObject := a.(*Object)
	_, bIsObject := b.(*Object)

	if aIsObject || bIsObject {
		return aIsObject && bIsObject
	}

	return reflect.DeepEqual(a, b)
}
