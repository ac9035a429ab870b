package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestThatChangesToWatchedFilesAreReported(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	dir := t.TempDir()
	level := filepath.Join(dir, "level.xml")
	other := filepath.Join(dir, "other.xml")

	is.NoErr(os.WriteFile(level, []byte("<Instances/>"), 0644))

	changes := make(chan string, 16)

	w, err := New(ctx, func(ctx context.Context, path string) {
		changes <- path
	})
	is.NoErr(err)
	defer w.Close()

	is.NoErr(w.Add(level))

	is.NoErr(os.WriteFile(other, []byte("<Instances/>"), 0644))
	is.NoErr(os.WriteFile(level, []byte("<Instances></Instances>"), 0644))

	select {
	case path := <-changes:
		is.Equal(path, level)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
