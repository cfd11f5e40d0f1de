package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
)

// ClassifiedError is an error with a category, severity, retry strategy and context.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.category, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.category, e.message)
}

func (e *ClassifiedError) Unwrap() error { return e.cause }

func (e *ClassifiedError) Category() ErrorCategory      { return e.category }
func (e *ClassifiedError) Severity() ErrorSeverity      { return e.severity }
func (e *ClassifiedError) RetryStrategy() RetryStrategy { return e.retry }
func (e *ClassifiedError) Message() string              { return e.message }
func (e *ClassifiedError) Cause() error                 { return e.cause }
func (e *ClassifiedError) Context() ErrorContext        { return e.context }
func (e *ClassifiedError) IsTransient() bool            { return e.retry == RetryBackoff }
func (e *ClassifiedError) exitCode() int                { return traitsOf(e.category).exitCode }
func (e *ClassifiedError) withContext(c ErrorContext) *ClassifiedError {
	cp := *e
	cp.context = c
	return &cp
}

// WithContext returns a copy of e with key set.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	return e.withContext(e.context.clone().Set(key, value))
}

// Is matches a ClassifiedError with the same category and message, which
// lets package-level sentinels built with this package work with errors.Is.
func (e *ClassifiedError) Is(target error) bool {
	other, ok := target.(*ClassifiedError)
	return ok && e.category == other.category && e.message == other.message
}

// LogAttrs renders the category and context as slog attributes, sorted by key.
func (e *ClassifiedError) LogAttrs() []slog.Attr {
	keys := make([]string, 0, len(e.context))
	for k := range e.context {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	attrs := make([]slog.Attr, 0, len(keys)+2)
	attrs = append(attrs, slog.String("category", string(e.category)))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.context[k]))
	}
	if e.IsTransient() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	return attrs
}

// AsClassified returns the outermost ClassifiedError in the chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

func IsClassified(err error) bool {
	_, ok := AsClassified(err)
	return ok
}

// HasCategory checks the outermost classified error in the chain.
func HasCategory(err error, category ErrorCategory) bool {
	c, ok := AsClassified(err)
	return ok && c.category == category
}

func HasSeverity(err error, severity ErrorSeverity) bool {
	c, ok := AsClassified(err)
	return ok && c.severity == severity
}

// GetCategory returns CategoryInternal for unclassified errors.
func GetCategory(err error) ErrorCategory {
	if c, ok := AsClassified(err); ok {
		return c.category
	}
	return CategoryInternal
}

func IsTransient(err error) bool {
	c, ok := AsClassified(err)
	return ok && c.IsTransient()
}
