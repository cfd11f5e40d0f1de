package errors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, ExitOK},
		{"validation", ValidationError("bad flag").Build(), ExitUsage},
		{"config", ConfigError("bad config").Build(), ExitConfig},
		{"auth", AuthError("denied").Build(), ExitAuth},
		{"source", SourceError("clone failed").Build(), ExitSource},
		{"network", NetworkError("dial failed").Build(), ExitSource},
		{"install", InstallError("pip failed").Build(), ExitInstall},
		{"generation", GenerationError("sphinx failed").Build(), ExitGeneration},
		{"wrapped generation", fmt.Errorf("run: %w", GenerationError("x").Build()), ExitGeneration},
		{"history", EventStoreError("locked").Build(), ExitRuntime},
		{"canceled", fmt.Errorf("stage: %w", context.Canceled), ExitCanceled},
		{"canceled inside classified", SourceError("clone").WithCause(context.Canceled).Build(), ExitCanceled},
		{"unknown category", NewError("other", "x").Build(), ExitGeneral},
		{"unclassified", errors.New("boom"), ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := InstallError("pip install failed").WithCause(cause).Build()

	quiet := NewCLIErrorAdapter(false, nil).FormatError(err)
	assert.Equal(t, "Error: pip install failed (install): exit status 1", quiet)

	verbose := NewCLIErrorAdapter(true, nil).FormatError(err)
	assert.Equal(t, "Error: [install] pip install failed: exit status 1", verbose)

	assert.Equal(t, "Error: plain", NewCLIErrorAdapter(false, nil).FormatError(errors.New("plain")))
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logs, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(GenerationError("sphinx-build failed").WithContext("builder", "html").Build())

	assert.Equal(t, ExitGeneration, code)
	assert.Contains(t, out.String(), "sphinx-build failed")
	assert.Contains(t, logs.String(), "category=generation")
	assert.Contains(t, logs.String(), "builder=html")

	code = -1
	adapter.HandleError(nil)
	assert.Equal(t, -1, code)
}
