package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/backlog/internal/config"
	"github.com/Iron-Ham/backlog/internal/contentcache"
	"github.com/Iron-Ham/backlog/internal/filesystem"
	"github.com/Iron-Ham/backlog/internal/logging"
	"github.com/Iron-Ham/backlog/internal/searchindex"
	"github.com/Iron-Ham/backlog/internal/sequencer"
)

// logDirName holds debug.log inside the backlog root. It sits beside the
// watched directories, never inside them.
const logDirName = ".cache"

// backlogEnv bundles what every command needs to reach the backlog.
type backlogEnv struct {
	cfg    *config.Config
	dir    string
	logger *logging.Logger
	store  *filesystem.Store
}

func openBacklog() (*backlogEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	dir := cfg.Backlog.ResolveDir(cwd)

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		l, err := logging.NewLogger(filepath.Join(dir, logDirName), logging.ParseLevel(cfg.Logging.Level))
		if err != nil {
			return nil, err
		}
		logger = l
	}

	store := filesystem.NewStore(dir,
		filesystem.WithTaskPrefix(cfg.Backlog.TaskPrefix),
		filesystem.WithLogger(logger))

	return &backlogEnv{cfg: cfg, dir: dir, logger: logger, store: store}, nil
}

func (e *backlogEnv) close() {
	_ = e.logger.Close()
}

// newCache builds a content cache. One-shot commands pass watch=false.
func (e *backlogEnv) newCache(watch bool) *contentcache.Cache {
	policy := contentcache.BestEffortResync
	if e.cfg.Watch.ResyncPolicy == "strict" {
		policy = contentcache.StrictResync
	}
	return contentcache.New(e.store,
		contentcache.WithLogger(e.logger),
		contentcache.WithWatch(watch && e.cfg.Watch.Enabled),
		contentcache.WithForceTree(e.cfg.Watch.ForceTree),
		contentcache.WithDebounce(e.cfg.Watch.Debounce()),
		contentcache.WithIgnorePatterns(e.cfg.Watch.Ignore...),
		contentcache.WithResyncPolicy(policy),
	)
}

func (e *backlogEnv) newIndex(cache *contentcache.Cache) *searchindex.Index {
	return searchindex.New(cache, e.store,
		searchindex.WithLogger(e.logger),
		searchindex.WithTaskPrefix(e.cfg.Backlog.TaskPrefix))
}

func (e *backlogEnv) sequencerPrefix() sequencer.Option {
	return sequencer.WithTaskPrefix(e.cfg.Backlog.TaskPrefix)
}
