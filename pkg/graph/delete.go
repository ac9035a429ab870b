package graph

import (
	"fmt"
	"slices"

	"github.com/diwise/levelstore/pkg/graph/errors"
)

// DeleteObjects removes targets from s. Every pointer to a target, in this store as
// well as in its companion, is set to null first. Deleted objects keep their values
// but report the null id and can not be registered again.
func (s *Store) DeleteObjects(targets ...*Object) error {
	doomed := make(map[*Object]bool, len(targets))

	for _, t := range targets {
		if t == nil {
			return errors.NewNotFoundError("cannot delete a nil object")
		}

		if t.state == Deleted {
			return errors.NewDeletedError(t.id)
		}

		if !s.owns(t) {
			return errors.NewNotFoundError(fmt.Sprintf("object %s is not part of %s", t.id, s.name))
		}

		doomed[t] = true
	}

	referrers := map[*Object]bool{}

	for _, o := range s.order {
		referrers[o] = true
	}

	if s.companion != nil {
		for _, o := range s.companion.order {
			referrers[o] = true
		}
	}

	for t := range doomed {
		for r := range t.backRefs {
			referrers[r] = true
		}
	}

	for r := range referrers {
		r.nullPointersTo(doomed)
	}

	for t := range doomed {
		t.releasePointers()

		delete(s.objects, t.id)
		delete(s.spatial, t.id)
		s.doc.Remove(t.node)

		t.store = nil
		t.state = Deleted
	}

	s.order = slices.DeleteFunc(s.order, func(o *Object) bool { return doomed[o] })

	return nil
}
