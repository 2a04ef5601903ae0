package searchindex

import (
	"github.com/Iron-Ham/backlog/internal/logging"
	"github.com/Iron-Ham/backlog/internal/model"
)

type options struct {
	logger     *logging.Logger
	taskPrefix string
}

// Option configures an Index.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTaskPrefix sets the prefix used to spell bare numeric ids, "task" by
// default.
func WithTaskPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.taskPrefix = prefix
		}
	}
}

func defaultOptions() options {
	return options{
		logger:     logging.NopLogger(),
		taskPrefix: model.DefaultTaskPrefix,
	}
}
