package contentcache

import (
	"time"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/backlog/internal/logging"
)

// DefaultDebounce coalesces the burst of notifications most editors emit
// for a single save.
const DefaultDebounce = 50 * time.Millisecond

// DefaultIgnorePatterns match editor swap, backup and temp files.
var DefaultIgnorePatterns = []string{"*.swp", "*~", ".#*", "*.tmp"}

type options struct {
	logger    *logging.Logger
	watch     bool
	forceTree bool
	debounce  time.Duration
	ignore    []string
	policy    ResyncPolicy
}

func defaultOptions() options {
	return options{
		logger:   logging.NopLogger(),
		watch:    true,
		debounce: DefaultDebounce,
		ignore:   DefaultIgnorePatterns,
		policy:   BestEffortResync,
	}
}

// Option configures a Cache.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWatch enables or disables filesystem watching. A cache without
// watchers only changes on Refresh.
func WithWatch(enabled bool) Option {
	return func(o *options) { o.watch = enabled }
}

// WithForceTree skips native recursive watching and always maintains the
// per-directory watcher tree.
func WithForceTree(force bool) Option {
	return func(o *options) { o.forceTree = force }
}

// WithDebounce sets how long raw notifications are coalesced before being
// queued. Zero queues every notification immediately.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.debounce = d
		}
	}
}

// WithIgnorePatterns replaces the glob patterns matched against file base
// names to drop editor noise.
func WithIgnorePatterns(patterns ...string) Option {
	return func(o *options) { o.ignore = patterns }
}

// WithResyncPolicy sets how watch-triggered parse failures are handled.
func WithResyncPolicy(p ResyncPolicy) Option {
	return func(o *options) { o.policy = p }
}

// compileIgnore compiles patterns, skipping and logging invalid ones.
func compileIgnore(patterns []string, logger *logging.Logger) []glob.Glob {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			logger.Warn("invalid ignore pattern", "pattern", p, "error", err)
			continue
		}
		globs = append(globs, g)
	}
	return globs
}
