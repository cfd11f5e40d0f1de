package errors

import "maps"

// ErrorCategory groups errors by the part of a build that produced them.
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"
	CategorySource     ErrorCategory = "source"
	CategoryNetwork    ErrorCategory = "network"
	CategoryInstall    ErrorCategory = "install"
	CategoryGeneration ErrorCategory = "generation"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryEventStore ErrorCategory = "eventstore"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates whether a build can continue past an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
)

// RetryStrategy tells callers whether repeating the operation can help.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryBackoff    RetryStrategy = "backoff"
	RetryUserAction RetryStrategy = "user"
)

// categoryTraits are the defaults a builder starts from and the exit code the CLI reports.
type categoryTraits struct {
	severity ErrorSeverity
	retry    RetryStrategy
	exitCode int
}

var traits = map[ErrorCategory]categoryTraits{
	CategoryConfig:     {SeverityFatal, RetryNever, ExitConfig},
	CategoryValidation: {SeverityFatal, RetryNever, ExitUsage},
	CategoryAuth:       {SeverityError, RetryUserAction, ExitAuth},
	CategorySource:     {SeverityFatal, RetryNever, ExitSource},
	CategoryNetwork:    {SeverityError, RetryBackoff, ExitSource},
	CategoryInstall:    {SeverityFatal, RetryNever, ExitInstall},
	CategoryGeneration: {SeverityFatal, RetryNever, ExitGeneration},
	CategoryFileSystem: {SeverityError, RetryNever, ExitGeneration},
	CategoryEventStore: {SeverityError, RetryNever, ExitRuntime},
	CategoryRuntime:    {SeverityFatal, RetryNever, ExitRuntime},
	CategoryInternal:   {SeverityFatal, RetryNever, ExitInternal},
}

func traitsOf(c ErrorCategory) categoryTraits {
	if t, ok := traits[c]; ok {
		return t
	}
	return categoryTraits{SeverityError, RetryNever, ExitGeneral}
}

// ErrorContext holds structured key/value details attached to an error.
type ErrorContext map[string]any

// Set adds or updates a value, allocating the map if needed.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// GetString returns the value for key if it is a string.
func (c ErrorContext) GetString(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

func (c ErrorContext) clone() ErrorContext {
	out := make(ErrorContext, len(c)+1)
	maps.Copy(out, c)
	return out
}
