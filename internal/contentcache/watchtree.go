package contentcache

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/backlog/internal/logging"
)

// watchTree emulates a recursive watch with one fsnotify registration per
// directory. The queue goroutine is its only writer; mu exists so tests
// and Dispose can inspect it safely.
type watchTree struct {
	fsw    *fsnotify.Watcher
	root   string
	logger *logging.Logger

	mu   sync.Mutex
	dirs map[string]struct{}
}

func newWatchTree(fsw *fsnotify.Watcher, root string, logger *logging.Logger) *watchTree {
	return &watchTree{
		fsw:    fsw,
		root:   filepath.Clean(root),
		logger: logger,
		dirs:   make(map[string]struct{}),
	}
}

// addSubtree watches dir and every directory below it that is not already
// watched. It returns every regular file found so the caller can treat
// each as present. Failing to watch dir itself is an error; failures below
// it are logged and that branch is skipped.
func (t *watchTree) addSubtree(dir string) ([]string, error) {
	dir = filepath.Clean(dir)
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			t.logger.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		}

		t.mu.Lock()
		_, watched := t.dirs[path]
		t.mu.Unlock()
		if watched {
			return nil
		}
		if err := t.fsw.Add(path); err != nil {
			if path == dir {
				return err
			}
			t.logger.Warn("failed to watch directory", "path", path, "error", err)
			return filepath.SkipDir
		}
		t.mu.Lock()
		t.dirs[path] = struct{}{}
		t.mu.Unlock()
		return nil
	})
	return files, err
}

// removeSubtree forgets dir and everything below it, returning how many
// registrations were dropped. The kernel usually removed the watches
// already, so Remove errors are ignored.
func (t *watchTree) removeSubtree(dir string) int {
	dir = filepath.Clean(dir)
	prefix := dir + string(filepath.Separator)

	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for d := range t.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			_ = t.fsw.Remove(d)
			delete(t.dirs, d)
			n++
		}
	}
	return n
}

// has reports whether dir is watched.
func (t *watchTree) has(dir string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.dirs[filepath.Clean(dir)]
	return ok
}

// dirCount returns the number of watched directories.
func (t *watchTree) dirCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dirs)
}
