// Package errors provides centralized error definitions for the backlog
// content layer: sentinels, domain error types that keep their cause, and
// the classification helpers callers branch on.
//
// # Error Types
//
//   - CacheError: content cache and search index lifecycle (reads before
//     initialization, bulk-load failures, disposal)
//   - ParseError: an entity file that could not be parsed
//   - CycleError: a dependency cycle found while sequencing tasks
//   - NotFoundError: an entity that does not exist
//   - ValidationError: invalid input or a rejected proposed change
//
// # Usage
//
//	err := errors.NewCacheError("get tasks", errors.ErrCacheNotInitialized).AsPrecondition()
//
//	if errors.Is(err, errors.ErrCacheNotInitialized) { ... }
//
//	var cycle *errors.CycleError
//	if errors.As(err, &cycle) { fmt.Println(cycle.Path) }
//
//	if errors.IsPrecondition(err) { panic(err) }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join

	// ErrUnsupported mirrors the standard library sentinel so watchers can
	// classify platform feature errors without a second import.
	ErrUnsupported = errors.ErrUnsupported
)

// Cache and index sentinel errors
var (
	ErrCacheNotInitialized = New("content cache not initialized")
	ErrCacheDisposed       = New("content cache disposed")
	ErrIndexNotInitialized = New("search index not initialized")
	ErrBulkLoadFailed      = New("bulk load failed")
)

// Entity sentinel errors
var (
	ErrTaskNotFound    = New("task not found")
	ErrParseFailed     = New("parse failed")
	ErrDependencyCycle = New("dependency cycle detected")
)

var (
	// ErrWatchUnsupported means native recursive watching is unavailable on
	// this platform.
	ErrWatchUnsupported = New("recursive watch not supported")

	// ErrInvalidInput matches every ValidationError.
	ErrInvalidInput = New("invalid input")
)

// retryable is implemented by errors that know whether a retry can help.
type retryable interface {
	Retryable() bool
}

// CacheError is raised by the content cache or search index.
//
//	errors.NewCacheError("get snapshot", errors.ErrCacheNotInitialized).AsPrecondition()
//	// cache error [op=get snapshot, precondition]: content cache not initialized
type CacheError struct {
	Operation    string
	Precondition bool
	Err          error
	retry        bool
}

// NewCacheError creates a CacheError for the failed operation.
func NewCacheError(operation string, cause error) *CacheError {
	return &CacheError{Operation: operation, Err: cause}
}

// AsPrecondition marks the error as a programming error: the caller used
// the component before initializing it. Precondition errors never retry.
func (e *CacheError) AsPrecondition() *CacheError {
	e.Precondition = true
	e.retry = false
	return e
}

// WithRetryable sets whether calling the operation again may succeed.
func (e *CacheError) WithRetryable(r bool) *CacheError {
	e.retry = r && !e.Precondition
	return e
}

func (e *CacheError) Retryable() bool { return e.retry }
func (e *CacheError) Unwrap() error   { return e.Err }

func (e *CacheError) Error() string {
	var tags []string
	if e.Operation != "" {
		tags = append(tags, "op="+e.Operation)
	}
	if e.Precondition {
		tags = append(tags, "precondition")
	}
	return withCause(bracket("cache error", tags), e.Err)
}

// ParseError reports an entity file that failed to parse. During watch
// handling these are usually torn writes and never reach subscribers.
type ParseError struct {
	Kind string
	Path string
	Err  error
}

// NewParseError creates a ParseError for the file at path.
func NewParseError(kind, path string, cause error) *ParseError {
	return &ParseError{Kind: kind, Path: path, Err: cause}
}

// Retryable is always true: the next write to the file may parse.
func (e *ParseError) Retryable() bool { return true }
func (e *ParseError) Unwrap() error   { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParseFailed }

func (e *ParseError) Error() string {
	return withCause(bracket("parse error", []string{"kind=" + e.Kind, "path=" + e.Path}), e.Err)
}

// CycleError reports a dependency cycle. Path lists the task ids along the
// cycle with the first id repeated at the end.
//
//	errors.NewCycleError([]string{"task-1", "task-2", "task-1"})
//	// dependency cycle detected: task-1 -> task-2 -> task-1
type CycleError struct {
	Path []string
}

func NewCycleError(path []string) *CycleError {
	return &CycleError{Path: path}
}

func (e *CycleError) Is(target error) bool { return target == ErrDependencyCycle }

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrDependencyCycle.Error()
	}
	return ErrDependencyCycle.Error() + ": " + strings.Join(e.Path, " -> ")
}

// NotFoundError reports an entity that does not exist. Task lookups also
// match ErrTaskNotFound.
type NotFoundError struct {
	ResourceType string
	ResourceID   string
}

func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrTaskNotFound && e.ResourceType == "task"
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// ValidationError reports invalid input or a rejected proposed change.
//
//	errors.NewValidationError("target sequence out of range").WithField("target").WithValue(7)
type ValidationError struct {
	Message string
	Field   string
	Value   any
	Err     error
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// WithField names the offending field.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue records the rejected value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause records the underlying error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.Err = cause
	return e
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

func (e *ValidationError) Error() string {
	var tags []string
	if e.Field != "" {
		tags = append(tags, "field="+e.Field)
	}
	if e.Value != nil {
		tags = append(tags, fmt.Sprintf("value=%v", e.Value))
	}
	return withCause(bracket("validation error", tags)+": "+e.Message, e.Err)
}

func bracket(prefix string, tags []string) string {
	if len(tags) == 0 {
		return prefix
	}
	return prefix + " [" + strings.Join(tags, ", ") + "]"
}

func withCause(msg string, cause error) string {
	if cause == nil {
		return msg
	}
	return msg + ": " + cause.Error()
}

// IsPrecondition reports whether err records use of an uninitialized cache
// or index. These are programming errors and must not be retried.
func IsPrecondition(err error) bool {
	var cacheErr *CacheError
	return As(err, &cacheErr) && cacheErr.Precondition
}

// IsRetryable reports whether the outermost classified error in err's
// chain says the operation may succeed on retry.
func IsRetryable(err error) bool {
	var r retryable
	return As(err, &r) && r.Retryable()
}
