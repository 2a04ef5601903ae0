// Package logging provides structured logging for the backlog content layer.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// component context. Every long-lived component (content cache, watchers,
// work queue, search index) receives a *Logger through its options and
// defaults to [NopLogger] so library use stays silent.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer safely.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("backlog/.cache", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	watchLog := logger.WithComponent("watch").WithKind("tasks")
//	watchLog.Debug("raw event", "path", path, "op", op.String())
//	watchLog.Warn("watcher arming failed", "error", err)
//
// # Log Levels
//
// Levels are DEBUG, INFO, WARN and ERROR; unknown strings fall back to INFO.
// Swallowed torn-write parse failures are logged at DEBUG, watcher arming
// failures at WARN, failed queue units at ERROR.
package logging
