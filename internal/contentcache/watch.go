package contentcache

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/backlog/internal/errors"
	"github.com/Iron-Ham/backlog/internal/filesystem"
	"github.com/Iron-Ham/backlog/internal/logging"
)

type entityKind string

const (
	kindTasks     entityKind = "tasks"
	kindDocuments entityKind = "documents"
	kindDecisions entityKind = "decisions"
)

// kindWatcher watches the directory of one entity kind and feeds the
// cache's work queue.
type kindWatcher struct {
	cache  *Cache
	kind   entityKind
	root   string
	logger *logging.Logger

	fsw *fsnotify.Watcher
	// tree is nil when the platform watches recursively on its own.
	tree *watchTree

	// decisionPaths remembers which file each decision id was last read
	// from, so removing a stale file after a rename keeps the decision.
	decisionPaths map[string]string

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// armWatchers starts one watcher per entity kind. Each is armed
// independently: a kind that fails is logged and the others still run.
// Runs on the queue.
func (c *Cache) armWatchers(ctx context.Context) {
	kinds := []struct {
		kind entityKind
		root string
	}{
		{kindTasks, c.store.TasksDir()},
		{kindDocuments, c.store.DocsDir()},
		{kindDecisions, c.store.DecisionsDir()},
	}

	type armed struct {
		w       *kindWatcher
		present []string
	}
	var started []armed
	for _, k := range kinds {
		w, present, err := c.newKindWatcher(k.kind, k.root)
		if err != nil {
			c.logger.Warn("watcher failed to start", "kind", string(k.kind), "root", k.root, "error", err)
			continue
		}
		started = append(started, armed{w: w, present: present})
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		for _, a := range started {
			a.w.close()
		}
		return
	}
	for _, a := range started {
		c.watchers = append(c.watchers, a.w)
	}
	c.mu.Unlock()

	// Files already on disk are reported as present. Unchanged entities
	// compare equal to the bulk-loaded ones and produce no event.
	for _, a := range started {
		for _, path := range a.present {
			if err := a.w.handleFile(ctx, path); err != nil {
				a.w.logger.Debug("initial sync failed", "path", path, "error", err)
			}
		}
	}
}

func (c *Cache) newKindWatcher(kind entityKind, root string) (*kindWatcher, []string, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	w := &kindWatcher{
		cache:         c,
		kind:          kind,
		root:          filepath.Clean(root),
		logger:        c.logger.WithKind(string(kind)),
		fsw:           fsw,
		decisionPaths: make(map[string]string),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	var present []string
	native := false
	if !c.opts.forceTree {
		err := addRecursive(fsw, w.root)
		switch {
		case err == nil:
			native = true
		case isRecursiveUnsupported(err):
			w.logger.Debug("native recursive watch unavailable, using directory tree", "error", err)
		default:
			_ = fsw.Close()
			return nil, nil, err
		}
	}
	if !native {
		w.tree = newWatchTree(fsw, w.root, w.logger)
		if present, err = w.tree.addSubtree(w.root); err != nil {
			_ = fsw.Close()
			return nil, nil, err
		}
	}

	go w.loop()
	w.logger.Debug("watcher armed", "root", w.root, "native", native)
	return w, present, nil
}

// addRecursive asks fsnotify for a recursive watch. Only the Windows
// backend implements it.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	if runtime.GOOS != "windows" {
		return errors.ErrWatchUnsupported
	}
	return fsw.Add(filepath.Join(root, "..."))
}

// isRecursiveUnsupported reports whether err means recursive watching is
// unavailable, as opposed to the directory being unwatchable.
func isRecursiveUnsupported(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errors.ErrWatchUnsupported) || errors.Is(err, errors.ErrUnsupported) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "recursive") || strings.Contains(msg, "not supported")
}

// loop coalesces raw notifications and queues one unit per path.
func (w *kindWatcher) loop() {
	defer close(w.done)

	debounce := w.cache.opts.debounce
	timer := time.NewTimer(0)
	<-timer.C

	pending := make(map[string]struct{})
	var firstPending time.Time

	for {
		select {
		case <-w.stop:
			timer.Stop()
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod || w.cache.ignored(ev.Name) {
				continue
			}
			if debounce == 0 {
				w.enqueue(ev.Name)
				continue
			}
			if len(pending) == 0 {
				firstPending = time.Now()
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(flushDelay(time.Since(firstPending), debounce))

		case <-timer.C:
			for _, path := range slices.Sorted(maps.Keys(pending)) {
				w.enqueue(path)
			}
			clear(pending)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// maxCoalesceFactor bounds how long events coalesce: a path waits at most
// this many debounce intervals after the first pending event, however busy
// the directory stays.
const maxCoalesceFactor = 10

// flushDelay is the wait before flushing pending paths, given how long the
// oldest one has been pending.
func flushDelay(pendingFor, debounce time.Duration) time.Duration {
	remaining := maxCoalesceFactor*debounce - pendingFor
	return max(min(debounce, remaining), 0)
}

func (w *kindWatcher) enqueue(path string) {
	w.cache.queue.Enqueue("watch "+string(w.kind), func(ctx context.Context) error {
		return w.handle(ctx, path)
	})
}

// close stops the loop and releases every registration.
func (w *kindWatcher) close() {
	w.closeOnce.Do(func() {
		close(w.stop)
		_ = w.fsw.Close()
		<-w.done
	})
}

// ignored reports whether the base name matches an ignore pattern.
func (c *Cache) ignored(path string) bool {
	name := filepath.Base(path)
	for _, g := range c.ignore {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// handle processes one path on the queue: directory structure first, then
// the entity the path names.
func (w *kindWatcher) handle(ctx context.Context, path string) error {
	info, statErr := os.Stat(path)
	switch {
	case statErr == nil && info.IsDir():
		if w.tree == nil || w.tree.has(path) {
			return nil
		}
		files, err := w.tree.addSubtree(path)
		if err != nil {
			return err
		}
		w.logger.Debug("watching new directory", "path", path, "files", len(files))
		var errs []error
		for _, f := range files {
			if err := w.handleFile(ctx, f); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)

	case statErr != nil && os.IsNotExist(statErr):
		if w.tree != nil {
			if n := w.tree.removeSubtree(path); n > 0 {
				w.logger.Debug("stopped watching removed directory", "path", path, "dirs", n)
			}
		}
	}
	return w.handleFile(ctx, path)
}

// handleFile turns a path into an upsert or removal for this kind. Paths
// that do not follow the kind's naming convention are ignored.
func (w *kindWatcher) handleFile(ctx context.Context, path string) error {
	switch w.kind {
	case kindTasks:
		return w.handleTask(ctx, path)
	case kindDocuments:
		return w.handleDocument(path)
	case kindDecisions:
		return w.handleDecision(path)
	}
	return nil
}

func (w *kindWatcher) handleTask(ctx context.Context, path string) error {
	if filepath.Dir(path) != w.root {
		return nil
	}
	store := w.cache.store
	id, ok := filesystem.TaskIDFromFilename(filepath.Base(path), store.TaskPrefix())
	if !ok {
		return nil
	}

	if !store.FileExists(path) {
		// The id may live on in another file after a title rename.
		task, err := store.LoadTask(ctx, id)
		if err != nil {
			return w.cache.opts.policy.handle(w.logger, path, err)
		}
		if task != nil {
			w.cache.upsertTask(*task)
			return nil
		}
		w.cache.removeTask(id)
		return nil
	}

	content, err := store.ReadFile(path)
	if err != nil {
		return w.cache.opts.policy.handle(w.logger, path, err)
	}
	task, err := store.ParseTask(path, content)
	if err != nil {
		return w.cache.opts.policy.handle(w.logger, path, err)
	}
	w.cache.upsertTask(*task)
	return nil
}

func (w *kindWatcher) handleDocument(path string) error {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	rel = filepath.ToSlash(rel)
	store := w.cache.store

	if !store.FileExists(path) {
		// Either a document file or a whole folder of them went away.
		w.cache.removeDocuments(func(docPath string) bool {
			return docPath == rel || strings.HasPrefix(docPath, rel+"/")
		})
		return nil
	}
	if _, ok := filesystem.DocumentIDFromFilename(filepath.Base(path)); !ok {
		return nil
	}

	content, err := store.ReadFile(path)
	if err != nil {
		return w.cache.opts.policy.handle(w.logger, path, err)
	}
	doc, err := store.ParseDocument(path, content)
	if err != nil {
		return w.cache.opts.policy.handle(w.logger, path, err)
	}
	w.cache.upsertDocument(*doc)
	return nil
}

func (w *kindWatcher) handleDecision(path string) error {
	if filepath.Dir(path) != w.root {
		return nil
	}
	id, ok := filesystem.DecisionIDFromFilename(filepath.Base(path))
	if !ok {
		return nil
	}
	store := w.cache.store

	if !store.FileExists(path) {
		if last, tracked := w.decisionPaths[id]; tracked && last != path {
			return nil
		}
		delete(w.decisionPaths, id)
		w.cache.removeDecision(id)
		return nil
	}

	content, err := store.ReadFile(path)
	if err != nil {
		return w.cache.opts.policy.handle(w.logger, path, err)
	}
	d, err := store.ParseDecision(path, content)
	if err != nil {
		return w.cache.opts.policy.handle(w.logger, path, err)
	}
	w.decisionPaths[d.ID] = path
	w.cache.upsertDecision(*d)
	return nil
}
