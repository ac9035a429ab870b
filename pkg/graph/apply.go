package graph

import (
	"context"
	goerrors "errors"
	"log/slog"

	"github.com/diwise/levelstore/pkg/graph/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
)

// TextEdit carries the edited serialized form of one object
type TextEdit struct {
	ObjectID string
	Fragment []byte
}

type NotUpdated struct {
	ObjectID string `json:"id"`
	Reason   string `json:"reason"`
}

type ApplyResult struct {
	Updated    []string     `json:"updated"`
	NotUpdated []NotUpdated `json:"notUpdated,omitempty"`
}

func (r *ApplyResult) IsMultiStatus() bool {
	return len(r.NotUpdated) > 0
}

// ApplyText replaces the attributes of each edited object with those in its fragment.
// Edits that can not be parsed or decoded are reported in the result and leave their
// object untouched. On a linked store the updated objects stay linked, and a fragment
// that refers to an unknown object fails the whole call before any edit is applied.
func (s *Store) ApplyText(ctx context.Context, edits []TextEdit) (_ *ApplyResult, err error) {
	ctx, span := tracer.Start(ctx, "apply-text")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)

	result := &ApplyResult{
		Updated: []string{},
	}

	updates := []*update{}

	for _, edit := range edits {
		obj, ok := s.objects[edit.ObjectID]
		if !ok {
			result.NotUpdated = append(result.NotUpdated, NotUpdated{ObjectID: edit.ObjectID, Reason: "object not found"})
			continue
		}

		u, uerr := obj.prepareUpdate(edit.Fragment)
		if uerr != nil {
			if goerrors.Is(uerr, errors.ErrDanglingReference) {
				err = uerr
				return nil, err
			}

			log.Warn("edit rejected", slog.String("id", edit.ObjectID), "err", uerr.Error())
			result.NotUpdated = append(result.NotUpdated, NotUpdated{ObjectID: edit.ObjectID, Reason: uerr.Error()})
			continue
		}

		updates = append(updates, u)
	}

	for _, u := range updates {
		u.commit()
		result.Updated = append(result.Updated, u.obj.id)
	}

	return result, nil
}
