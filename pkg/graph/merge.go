package graph

import (
	"context"
	"log/slog"
	"slices"

	"github.com/diwise/levelstore/pkg/graph/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
)

type MergeResult struct {
	Added []*Object
	// Deduplicated maps bundle ids to the id of the existing object they were folded into
	Deduplicated map[string]string
	// Renamed maps bundle ids to the id they were given in the destination
	Renamed map[string]string
}

type MergeOption func(*merger)

// MergeYield calls fn after every n hashing steps, allowing hosts to process events
// while a large bundle is merged
func MergeYield(n int, fn func()) MergeOption {
	return func(m *merger) {
		m.every = n
		m.yield = fn
	}
}

type merger struct {
	every int
	yield func()
	steps int
}

func (m *merger) step() {
	m.steps++
	if m.yield != nil && m.every > 0 && m.steps%m.every == 0 {
		m.yield()
	}
}

// Merge imports the objects of a linked bundle into s. Bundle objects with the same
// recursive hash as an object already in s are discarded, and pointers to them are
// redirected to the existing object. Since that changes the hashes of the objects
// pointing at them, interning is repeated until nothing more is found. The remaining
// objects are moved into s, renamed if their id is already taken.
func (s *Store) Merge(ctx context.Context, bundle *Store, opts ...MergeOption) (_ *MergeResult, err error) {
	ctx, span := tracer.Start(ctx, "merge")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if bundle == nil || bundle == s || bundle == s.companion {
		err = errors.NewUnsupportedOperationError("a bundle must be a separate store")
		return nil, err
	}

	if !s.linked || !bundle.linked {
		err = errors.NewNotLinkedError(bundle.name)
		return nil, err
	}

	m := &merger{}
	for _, opt := range opts {
		opt(m)
	}

	existing := map[Digest]*Object{}

	for _, o := range s.order {
		d := o.RecursiveHash(nil)
		if _, ok := existing[d]; !ok {
			existing[d] = o
		}
		m.step()
	}

	result := &MergeResult{
		Deduplicated: map[string]string{},
		Renamed:      map[string]string{},
	}

	remaining := bundle.Objects()
	discarded := []*Object{}

	for changed := true; changed; {
		changed = false

		for i := 0; i < len(remaining); i++ {
			o := remaining[i]
			m.step()

			match, ok := existing[o.RecursiveHash(nil)]
			if !ok {
				continue
			}

			for _, other := range remaining {
				other.remapPointers(o, match)
			}

			result.Deduplicated[o.id] = match.id
			discarded = append(discarded, o)
			remaining = slices.Delete(remaining, i, i+1)
			i--
			changed = true
		}
	}

	moving := map[*Object]bool{}
	for _, o := range remaining {
		moving[o] = true
	}

	for _, o := range remaining {
		for _, a := range o.attrs {
			for _, t := range a.targets {
				if t != nil && !moving[t] && !s.owns(t) && !s.companion.owns(t) {
					err = errors.NewReferenceNotRegisteredError(t.id)
					return nil, err
				}
			}
		}
	}

	for _, o := range discarded {
		o.releasePointers()
		bundle.detach(o)
		bundle.doc.Remove(o.node)
		o.state = Deleted
	}

	for _, o := range remaining {
		bundle.detach(o)
		bundle.doc.Remove(o.node)

		if s.contains(o.id) || s.companion.contains(o.id) {
			newID := s.NewID()
			result.Renamed[o.id] = newID
			o.id = newID
		}

		if err = s.add(o); err != nil {
			return nil, err
		}

		s.doc.Append(o.node)
		result.Added = append(result.Added, o)
	}

	for _, o := range result.Added {
		if err = o.sync(); err != nil {
			return nil, err
		}
	}

	logging.GetFromContext(ctx).Info("bundle merged",
		slog.String("store", s.name),
		slog.Int("added", len(result.Added)),
		slog.Int("deduplicated", len(result.Deduplicated)),
		slog.Int("renamed", len(result.Renamed)),
	)

	return result, nil
}
