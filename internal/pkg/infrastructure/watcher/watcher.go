package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/fsnotify/fsnotify"
)

// ChangeFunc is called with the cleaned path of a watched file that has been written,
// created or renamed into place
type ChangeFunc func(ctx context.Context, path string)

type Watcher interface {
	Add(path string) error
	Close() error
}

type fileWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	files    map[string]bool
	dirs     map[string]bool
	onChange ChangeFunc
	done     chan struct{}
}

// New starts watching for changes. Directories are watched rather than the files
// themselves, so that files that are replaced by a rename are still noticed.
func New(ctx context.Context, onChange ChangeFunc) (Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw := &fileWatcher{
		watcher:  w,
		files:    map[string]bool{},
		dirs:     map[string]bool{},
		onChange: onChange,
		done:     make(chan struct{}),
	}

	go fw.run(ctx)

	return fw, nil
}

func (fw *fileWatcher) Add(path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.files[path] = true

	dir := filepath.Dir(path)
	if fw.dirs[dir] {
		return nil
	}

	if err = fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fw.dirs[dir] = true

	return nil
}

func (fw *fileWatcher) Close() error {
	close(fw.done)
	return fw.watcher.Close()
}

func (fw *fileWatcher) watching(path string) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	return fw.files[filepath.Clean(path)]
}

func (fw *fileWatcher) run(ctx context.Context) {
	log := logging.GetFromContext(ctx)

	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if fw.watching(event.Name) {
				log.Debug("file changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))
				fw.onChange(ctx, filepath.Clean(event.Name))
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("file watcher error", "err", err.Error())
		}
	}
}
