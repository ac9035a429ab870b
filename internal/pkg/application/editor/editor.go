package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"

	"github.com/diwise/levelstore/internal/pkg/application/notifications"
	"github.com/diwise/levelstore/internal/pkg/infrastructure/watcher"
	"github.com/diwise/levelstore/pkg/graph"
	"github.com/diwise/levelstore/pkg/graph/codec"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

type LevelEditor interface {
	Levels(ctx context.Context) []LevelInfo
	Types(ctx context.Context) []string

	ListObjects(ctx context.Context, level, objectType string) ([]ObjectSummary, error)
	RetrieveObject(ctx context.Context, level, objectID string) (*ObjectSnapshot, error)
	DeleteObjects(ctx context.Context, level string, objectIDs ...string) (*DeleteResult, error)
	ObjectHash(ctx context.Context, level, objectID string) (*HashResult, error)
	DiffObjects(ctx context.Context, level, a, b string) ([]DiffEntry, error)
	ApplyText(ctx context.Context, level string, edits []graph.TextEdit) (*graph.ApplyResult, error)
	Import(ctx context.Context, level string, bundle io.Reader) (*ImportResult, error)

	Save(ctx context.Context, level string) error
	Reload(ctx context.Context, level string) (bool, error)

	Start() error
	Stop() error
}

// mergeBatchSize is the number of hashing steps between yields during an import
const mergeBatchSize int = 256

type levelEditor struct {
	ctx      context.Context
	sessions map[string]*session
	order    []string
	registry *codec.Registry

	notifier notifications.Notifier
	watcher  watcher.Watcher
}

// New loads and links every configured level
func New(ctx context.Context, cfg Config) (LevelEditor, error) {
	var notifier notifications.Notifier

	notifierEndpoint := env.GetVariableOrDefault(ctx, "NOTIFIER_ENDPOINT", "")
	if notifierEndpoint != "" {
		var err error
		notifier, err = notifications.NewNotifier(ctx, notifierEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create notifier: %w", err)
		}
	}

	app := &levelEditor{
		ctx:      ctx,
		sessions: map[string]*session{},
		registry: codec.NewRegistry(),
		notifier: notifier,
	}

	for _, level := range cfg.Levels {
		s, err := newSession(level, app.registry)
		if err != nil {
			return nil, err
		}

		if err = s.load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load level %s: %w", level.ID, err)
		}

		app.sessions[level.ID] = s
		app.order = append(app.order, level.ID)
	}

	return app, nil
}

func (app *levelEditor) session(level string) (*session, error) {
	s, ok := app.sessions[level]
	if !ok {
		return nil, NewUnknownLevelError(level)
	}
	return s, nil
}

func (app *levelEditor) Levels(ctx context.Context) []LevelInfo {
	levels := make([]LevelInfo, 0, len(app.order))

	for _, id := range app.order {
		s := app.sessions[id]
		s.mu.Lock()
		levels = append(levels, LevelInfo{
			ID:               id,
			Name:             s.cfg.Name,
			Objects:          s.primary.Len(),
			CompanionObjects: s.companion.Len(),
			Spatial:          len(s.primary.SpatialObjects()),
			LoadedAt:         s.loadedAt,
		})
		s.mu.Unlock()
	}

	return levels
}

// Types returns every type tag encountered while decoding the loaded levels
func (app *levelEditor) Types(ctx context.Context) []string {
	return app.registry.DiscoveredTypes()
}

func (app *levelEditor) ListObjects(ctx context.Context, level, objectType string) ([]ObjectSummary, error) {
	s, err := app.session(level)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := []ObjectSummary{}

	for _, store := range []struct {
		name  string
		store *graph.Store
	}{{PrimaryStore, s.primary}, {CompanionStore, s.companion}} {
		for _, obj := range store.store.Objects() {
			if objectType == "" || obj.Type() == objectType {
				result = append(result, summarize(obj, store.name))
			}
		}
	}

	return result, nil
}

func (app *levelEditor) RetrieveObject(ctx context.Context, level, objectID string) (*ObjectSnapshot, error) {
	s, err := app.session(level)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, store, ok := s.find(objectID)
	if !ok {
		return nil, NewNotFoundError(fmt.Sprintf("no object with id %s in level %s", objectID, level))
	}

	snapshot := &ObjectSnapshot{
		ObjectSummary: summarize(obj, store),
		ReferencedBy:  []string{},
	}

	for _, r := range obj.ReferencedBy() {
		snapshot.ReferencedBy = append(snapshot.ReferencedBy, r.ID())
	}

	snapshot.JSON, err = json.Marshal(obj)
	if err != nil {
		return nil, err
	}

	snapshot.XML, err = obj.Serialize()
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// DeleteObjects deletes the objects with the given ids from whichever store holds them.
// Nothing is deleted if any of the ids is unknown.
func (app *levelEditor) DeleteObjects(ctx context.Context, level string, objectIDs ...string) (*DeleteResult, error) {
	s, err := app.session(level)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fromPrimary := []*graph.Object{}
	fromCompanion := []*graph.Object{}
	result := &DeleteResult{Deleted: []string{}}

	for _, id := range objectIDs {
		if slices.Contains(result.Deleted, id) {
			continue
		}

		obj, store, ok := s.find(id)
		if !ok {
			return nil, NewNotFoundError(fmt.Sprintf("no object with id %s in level %s", id, level))
		}

		if store == PrimaryStore {
			fromPrimary = append(fromPrimary, obj)
		} else {
			fromCompanion = append(fromCompanion, obj)
		}

		result.Deleted = append(result.Deleted, id)
	}

	if len(fromPrimary) > 0 {
		if err = s.primary.DeleteObjects(fromPrimary...); err != nil {
			return nil, err
		}
	}

	if len(fromCompanion) > 0 {
		if err = s.companion.DeleteObjects(fromCompanion...); err != nil {
			return nil, err
		}
	}

	logging.GetFromContext(ctx).Info("objects deleted", slog.String("level", level), slog.Int("count", len(result.Deleted)))

	if app.notifier != nil {
		app.notifier.ObjectsDeleted(ctx, level, result.Deleted)
	}

	return result, nil
}

func (app *levelEditor) ObjectHash(ctx context.Context, level, objectID string) (*HashResult, error) {
	s, err := app.session(level)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, _, ok := s.find(objectID)
	if !ok {
		return nil, NewNotFoundError(fmt.Sprintf("no object with id %s in level %s", objectID, level))
	}

	return &HashResult{
		ID:        obj.ID(),
		Type:      obj.Type(),
		Content:   obj.ContentHash().String(),
		Recursive: obj.RecursiveHash(nil).String(),
	}, nil
}

func (app *levelEditor) DiffObjects(ctx context.Context, level, a, b string) ([]DiffEntry, error) {
	s, err := app.session(level)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	objA, _, ok := s.find(a)
	if !ok {
		return nil, NewNotFoundError(fmt.Sprintf("no object with id %s in level %s", a, level))
	}

	objB, _, ok := s.find(b)
	if !ok {
		return nil, NewNotFoundError(fmt.Sprintf("no object with id %s in level %s", b, level))
	}

	diffs, err := graph.Diff(objA, objB)
	if err != nil {
		return nil, err
	}

	entries := make([]DiffEntry, 0, len(diffs))
	for _, d := range diffs {
		entries = append(entries, DiffEntry{
			Path: d.Path.String(),
			A:    presentable(d.A),
			B:    presentable(d.B),
		})
	}

	return entries, nil
}

// presentable replaces object references with their ids
func presentable(v any) any {
	switch value := v.(type) {
	case *graph.Object:
		return value.ID()
	case []any:
		values := make([]any, len(value))
		for i := range value {
			values[i] = presentable(value[i])
		}
		return values
	default:
		return v
	}
}

// ApplyText routes every edit to the store that holds the edited object
func (app *levelEditor) ApplyText(ctx context.Context, level string, edits []graph.TextEdit) (*graph.ApplyResult, error) {
	s, err := app.session(level)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	toPrimary := []graph.TextEdit{}
	toCompanion := []graph.TextEdit{}

	for _, edit := range edits {
		if _, store, ok := s.find(edit.ObjectID); ok && store == CompanionStore {
			toCompanion = append(toCompanion, edit)
		} else {
			toPrimary = append(toPrimary, edit)
		}
	}

	result, err := s.primary.ApplyText(ctx, toPrimary)
	if err != nil {
		return result, err
	}

	if len(toCompanion) > 0 {
		more, err := s.companion.ApplyText(ctx, toCompanion)
		if more != nil {
			result.Updated = append(result.Updated, more.Updated...)
			result.NotUpdated = append(result.NotUpdated, more.NotUpdated...)
		}
		if err != nil {
			return result, err
		}
	}

	return result, nil
}

// Import merges a bundle document into the primary store of a level. Objects that
// already exist with identical content are not imported a second time.
func (app *levelEditor) Import(ctx context.Context, level string, bundle io.Reader) (*ImportResult, error) {
	s, err := app.session(level)
	if err != nil {
		return nil, err
	}

	raw, err := graph.Load(ctx, bundle, graph.WithName(level+"/bundle"), graph.WithCodecs(app.registry))
	if err != nil {
		return nil, NewBadRequestDataError(err.Error())
	}

	linked, _, err := graph.Link(ctx, raw, graph.NewRawStore())
	if err != nil {
		return nil, NewBadRequestDataError(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := s.primary.Merge(ctx, linked, graph.MergeYield(mergeBatchSize, runtime.Gosched))
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		Added:        []string{},
		Deduplicated: merged.Deduplicated,
		Renamed:      merged.Renamed,
	}

	for _, obj := range merged.Added {
		result.Added = append(result.Added, obj.ID())
	}

	if app.notifier != nil {
		app.notifier.BundleImported(ctx, level, result.Added, len(result.Deduplicated))
	}

	return result, nil
}

func (app *levelEditor) Save(ctx context.Context, level string) error {
	s, err := app.session(level)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.save(ctx); err != nil {
		return err
	}

	if app.notifier != nil {
		app.notifier.LevelSaved(ctx, level)
	}

	return nil
}

// Reload replaces the stores of a level with freshly loaded ones, unless none of its
// documents have changed since they were last loaded or saved
func (app *levelEditor) Reload(ctx context.Context, level string) (bool, error) {
	s, err := app.session(level)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := s.changedOnDisk()
	if err != nil || !changed {
		return false, err
	}

	if err = s.load(ctx); err != nil {
		return false, err
	}

	logging.GetFromContext(ctx).Info("level reloaded", slog.String("level", level))

	if app.notifier != nil {
		app.notifier.LevelReloaded(ctx, level)
	}

	return true, nil
}

func (app *levelEditor) onFileChanged(ctx context.Context, path string) {
	for _, id := range app.order {
		if !slices.Contains(app.sessions[id].paths(), path) {
			continue
		}

		if _, err := app.Reload(ctx, id); err != nil {
			logging.GetFromContext(ctx).Error("failed to reload level", slog.String("level", id), "err", err.Error())
		}
	}
}

func (app *levelEditor) Start() error {
	if app.notifier != nil {
		if err := app.notifier.Start(); err != nil {
			return err
		}
	}

	for _, id := range app.order {
		s := app.sessions[id]
		if !s.cfg.Watch {
			continue
		}

		if app.watcher == nil {
			w, err := watcher.New(app.ctx, app.onFileChanged)
			if err != nil {
				return err
			}
			app.watcher = w
		}

		for _, path := range s.paths() {
			if err := app.watcher.Add(path); err != nil {
				return err
			}
		}
	}

	return nil
}

func (app *levelEditor) Stop() error {
	if app.watcher != nil {
		app.watcher.Close()
		app.watcher = nil
	}

	if app.notifier != nil {
		return app.notifier.Stop()
	}

	return nil
}
