package contentcache

import (
	"github.com/Iron-Ham/backlog/internal/logging"
)

// ResyncPolicy decides what happens when a watch-triggered re-read of a
// single entity fails to parse.
type ResyncPolicy int

const (
	// BestEffortResync drops the failure and waits for the next
	// notification for the same path. A file observed mid-write parses
	// cleanly once the writer finishes and the watcher fires again.
	BestEffortResync ResyncPolicy = iota

	// StrictResync returns the failure from the queued unit so it shows up
	// in the queue's error log. The cached entity is left untouched either
	// way.
	StrictResync
)

// String returns the policy name.
func (p ResyncPolicy) String() string {
	switch p {
	case BestEffortResync:
		return "best-effort"
	case StrictResync:
		return "strict"
	default:
		return "unknown"
	}
}

// handle applies the policy to a parse failure for path.
func (p ResyncPolicy) handle(logger *logging.Logger, path string, err error) error {
	if p == StrictResync {
		return err
	}
	logger.Debug("ignoring unparsable entity until next change", "path", path, "error", err)
	return nil
}
