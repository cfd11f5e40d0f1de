package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("builder fields", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityWarning).
			WithContext("file", "docpipe.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityWarning, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())
		file, ok := err.Context().GetString("file")
		assert.True(t, ok)
		assert.Equal(t, "docpipe.yaml", file)
	})

	t.Run("detection through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("stage install_dev: %w", InstallError("pip failed").Build())

		assert.True(t, IsClassified(wrapped))
		assert.True(t, HasCategory(wrapped, CategoryInstall))
		assert.True(t, HasSeverity(wrapped, SeverityFatal))
		assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
	})

	t.Run("sentinel survives classification", func(t *testing.T) {
		sentinel := errors.New("source unavailable")
		err := SourceError("clone failed").WithCause(fmt.Errorf("%w: dial tcp", sentinel)).Build()
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("classified sentinels match by category and message", func(t *testing.T) {
		sentinel := EventStoreError("failed to append build event").Build()
		err := EventStoreError("failed to append build event").WithCause(errors.New("disk full")).Build()
		assert.ErrorIs(t, err, sentinel)
		assert.NotErrorIs(t, InstallError("failed to append build event").Build(), sentinel)
	})

	t.Run("WithContext copies", func(t *testing.T) {
		base := GenerationError("failed").WithContext("a", "1").Build()
		derived := base.WithContext("b", "2")

		_, ok := base.Context().GetString("b")
		assert.False(t, ok)
		v, _ := derived.Context().GetString("a")
		assert.Equal(t, "1", v)
	})
}

func TestErrorBuilder(t *testing.T) {
	t.Run("fluent API", func(t *testing.T) {
		original := errors.New("original error")
		err := WrapError(original, CategoryInstall, "pip failed").
			Warning().
			Retryable().
			WithContext("package", "numpydoc").
			Build()

		assert.Equal(t, SeverityWarning, err.Severity())
		assert.Equal(t, RetryBackoff, err.RetryStrategy())
		assert.True(t, IsTransient(err))
		assert.ErrorIs(t, err, original)
	})

	t.Run("reuse does not leak context", func(t *testing.T) {
		b := SourceError("clone failed").WithContext("url", "a")
		first := b.Build()
		b.WithContext("url", "b")
		url, _ := first.Context().GetString("url")
		assert.Equal(t, "a", url)
	})

	t.Run("category defaults", func(t *testing.T) {
		tests := []struct {
			name     string
			builder  *ErrorBuilder
			category ErrorCategory
			severity ErrorSeverity
			retry    RetryStrategy
		}{
			{"ConfigError", ConfigError("test"), CategoryConfig, SeverityFatal, RetryNever},
			{"ValidationError", ValidationError("test"), CategoryValidation, SeverityFatal, RetryNever},
			{"AuthError", AuthError("test"), CategoryAuth, SeverityError, RetryUserAction},
			{"NetworkError", NetworkError("test"), CategoryNetwork, SeverityError, RetryBackoff},
			{"SourceError", SourceError("test"), CategorySource, SeverityFatal, RetryNever},
			{"InstallError", InstallError("test"), CategoryInstall, SeverityFatal, RetryNever},
			{"GenerationError", GenerationError("test"), CategoryGeneration, SeverityFatal, RetryNever},
			{"FileSystemError", FileSystemError("test"), CategoryFileSystem, SeverityError, RetryNever},
			{"EventStoreError", EventStoreError("test"), CategoryEventStore, SeverityError, RetryNever},
			{"RuntimeError", RuntimeError("test"), CategoryRuntime, SeverityFatal, RetryNever},
			{"InternalError", InternalError("test"), CategoryInternal, SeverityFatal, RetryNever},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.builder.Build()
				assert.Equal(t, tt.category, err.Category())
				assert.Equal(t, tt.severity, err.Severity())
				assert.Equal(t, tt.retry, err.RetryStrategy())
			})
		}
	})
}

func TestLogAttrs(t *testing.T) {
	err := NetworkError("dial failed").WithContext("url", "https://x").WithContext("attempt", 2).Build()
	attrs := err.LogAttrs()
	require.Len(t, attrs, 4)
	assert.Equal(t, "category", attrs[0].Key)
	assert.Equal(t, "attempt", attrs[1].Key)
	assert.Equal(t, "url", attrs[2].Key)
	assert.Equal(t, "retryable", attrs[3].Key)
}
