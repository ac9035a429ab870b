package editor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/diwise/levelstore/pkg/graph"
	"github.com/diwise/levelstore/pkg/graph/codec"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/dustin/go-humanize"
)

// session holds the linked stores of one level. The stores are not safe for
// concurrent use, so every access goes through mu.
type session struct {
	mu sync.Mutex

	cfg      LevelConfig
	registry *codec.Registry

	primary   *graph.Store
	companion *graph.Store

	modTimes map[string]time.Time
	loadedAt time.Time
}

func newSession(cfg LevelConfig, registry *codec.Registry) (*session, error) {
	var err error

	cfg.Primary, err = filepath.Abs(cfg.Primary)
	if err != nil {
		return nil, err
	}

	if cfg.Companion != "" {
		cfg.Companion, err = filepath.Abs(cfg.Companion)
		if err != nil {
			return nil, err
		}
	}

	return &session{
		cfg:      cfg,
		registry: registry,
		modTimes: map[string]time.Time{},
	}, nil
}

func (s *session) options(name string) []graph.StoreOption {
	opts := []graph.StoreOption{
		graph.WithName(s.cfg.ID + "/" + name),
		graph.WithCodecs(s.registry),
	}

	if s.cfg.TransformAttribute != "" {
		opts = append(opts, graph.WithTransformAttribute(s.cfg.TransformAttribute))
	}

	return opts
}

func (s *session) paths() []string {
	if s.cfg.Companion == "" {
		return []string{s.cfg.Primary}
	}
	return []string{s.cfg.Primary, s.cfg.Companion}
}

func (s *session) loadDocument(ctx context.Context, path, name string) (*graph.RawStore, time.Time, error) {
	if path == "" {
		return graph.NewRawStore(s.options(name)...), time.Time{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, err
	}

	logging.GetFromContext(ctx).Info("loading document",
		slog.String("level", s.cfg.ID),
		slog.String("path", path),
		slog.String("size", humanize.Bytes(uint64(fi.Size()))),
	)

	raw, err := graph.Load(ctx, f, s.options(name)...)
	if err != nil {
		return nil, time.Time{}, err
	}

	return raw, fi.ModTime(), nil
}

// load replaces both stores wholesale. The caller must hold mu.
func (s *session) load(ctx context.Context) error {
	p, primaryModTime, err := s.loadDocument(ctx, s.cfg.Primary, PrimaryStore)
	if err != nil {
		return err
	}

	c, companionModTime, err := s.loadDocument(ctx, s.cfg.Companion, CompanionStore)
	if err != nil {
		return err
	}

	primary, companion, err := graph.Link(ctx, p, c)
	if err != nil {
		return fmt.Errorf("failed to link level %s: %w", s.cfg.ID, err)
	}

	s.primary, s.companion = primary, companion
	s.modTimes = map[string]time.Time{s.cfg.Primary: primaryModTime}
	if s.cfg.Companion != "" {
		s.modTimes[s.cfg.Companion] = companionModTime
	}
	s.loadedAt = time.Now().UTC()

	return nil
}

// changedOnDisk reports whether any document has been modified since it was last loaded or saved
func (s *session) changedOnDisk() (bool, error) {
	for _, path := range s.paths() {
		fi, err := os.Stat(path)
		if err != nil {
			return false, err
		}

		if !fi.ModTime().Equal(s.modTimes[path]) {
			return true, nil
		}
	}

	return false, nil
}

func (s *session) find(id string) (*graph.Object, string, bool) {
	if obj, ok := s.primary.Get(id); ok {
		return obj, PrimaryStore, true
	}

	if obj, ok := s.companion.Get(id); ok {
		return obj, CompanionStore, true
	}

	return nil, "", false
}

func (s *session) save(ctx context.Context) error {
	stores := map[string]*graph.Store{s.cfg.Primary: s.primary}
	if s.cfg.Companion != "" {
		stores[s.cfg.Companion] = s.companion
	}

	for path, store := range stores {
		if err := writeAtomically(path, store.Write); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}

		fi, err := os.Stat(path)
		if err != nil {
			return err
		}

		s.modTimes[path] = fi.ModTime()

		logging.GetFromContext(ctx).Info("document saved",
			slog.String("level", s.cfg.ID),
			slog.String("path", path),
			slog.String("size", humanize.Bytes(uint64(fi.Size()))),
		)
	}

	return nil
}

// writeAtomically writes to a temporary file next to path and renames it into place
func writeAtomically(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}

	if err = write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func summarize(obj *graph.Object, store string) ObjectSummary {
	return ObjectSummary{
		ID:    obj.ID(),
		Type:  obj.Type(),
		Name:  obj.Name(),
		Store: store,
	}
}
