package buildsys

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoredPath(t *testing.T) {
	root := filepath.FromSlash("/project")

	tests := []struct {
		path    string
		ignored bool
	}{
		{"/project", false},
		{"/project/pkg/ringer/ringer.go", false},
		{"/project/build/libringer.so", true},
		{"/project/.git/HEAD", true},
		{"/project/pkg/.hidden", true},
		{"/project/" + CacheName, true},
		{"/project/vendor/x.go", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ignored, ignoredPath(root, filepath.FromSlash(tt.path), []string{"vendor"}), tt.path)
	}
}

func TestWatchBatchesChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.txt", "a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, WatchOptions{Settle: 100 * time.Millisecond}, func(ctx context.Context, changed []string) error {
			runs <- changed
			return nil
		})
	}()

	// give the watcher time to register the directories
	time.Sleep(200 * time.Millisecond)

	writeFile(t, dir, "src/a.txt", "changed")
	writeFile(t, dir, "src/b.txt", "new")
	writeFile(t, dir, "build/ignored.txt", "out")

	select {
	case changed := <-runs:
		assert.Contains(t, changed, filepath.Join(dir, "src", "a.txt"))
		for _, path := range changed {
			assert.NotContains(t, path, "ignored.txt")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
