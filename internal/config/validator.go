package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "watch.debounce_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// taskPrefixRegex validates task id prefixes.
// The prefix is followed by "-" in ids, so it cannot contain one itself.
var taskPrefixRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

const (
	maxPathLength  = 4096
	maxDebounceMs  = 10000
	maxSearchLimit = 10000
	maxIgnoreGlobs = 100
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidResyncPolicies returns the list of valid watch resync policies
func ValidResyncPolicies() []string {
	return []string{"best_effort", "strict"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBacklog()...)
	errors = append(errors, c.validateWatch()...)
	errors = append(errors, c.validateSearch()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateBacklog validates the BacklogConfig
func (c *Config) validateBacklog() []ValidationError {
	var errors []ValidationError

	dir := c.Backlog.Dir
	if strings.TrimSpace(dir) == "" {
		errors = append(errors, ValidationError{
			Field:   "backlog.dir",
			Value:   dir,
			Message: "must not be empty",
		})
	}
	if strings.ContainsRune(dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "backlog.dir",
			Value:   dir,
			Message: "path contains invalid null character",
		})
	}
	if len(dir) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   "backlog.dir",
			Value:   dir,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	if !taskPrefixRegex.MatchString(c.Backlog.TaskPrefix) {
		errors = append(errors, ValidationError{
			Field:   "backlog.task_prefix",
			Value:   c.Backlog.TaskPrefix,
			Message: "must start with a letter and contain only letters, digits and underscores",
		})
	}

	return errors
}

// validateWatch validates the WatchConfig
func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	if c.Watch.DebounceMs < 0 || c.Watch.DebounceMs > maxDebounceMs {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: fmt.Sprintf("must be between 0 and %d", maxDebounceMs),
		})
	}

	if len(c.Watch.Ignore) > maxIgnoreGlobs {
		errors = append(errors, ValidationError{
			Field:   "watch.ignore",
			Value:   len(c.Watch.Ignore),
			Message: fmt.Sprintf("exceeds maximum of %d patterns", maxIgnoreGlobs),
		})
	}
	for i, pattern := range c.Watch.Ignore {
		field := fmt.Sprintf("watch.ignore[%d]", i)
		if strings.TrimSpace(pattern) == "" {
			errors = append(errors, ValidationError{Field: field, Value: pattern, Message: "must not be empty"})
			continue
		}
		if strings.ContainsAny(pattern, `/\`) {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   pattern,
				Message: "matches base names only and must not contain path separators",
			})
			continue
		}
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob: %v", err),
			})
		}
	}

	if c.Watch.ResyncPolicy != "" && !slices.Contains(ValidResyncPolicies(), c.Watch.ResyncPolicy) {
		errors = append(errors, ValidationError{
			Field:   "watch.resync_policy",
			Value:   c.Watch.ResyncPolicy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidResyncPolicies(), ", ")),
		})
	}

	return errors
}

// validateSearch validates the SearchConfig
func (c *Config) validateSearch() []ValidationError {
	var errors []ValidationError

	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > maxSearchLimit {
		errors = append(errors, ValidationError{
			Field:   "search.default_limit",
			Value:   c.Search.DefaultLimit,
			Message: fmt.Sprintf("must be between 1 and %d", maxSearchLimit),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
