package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Exit codes returned by the docpipe CLI.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitAuth       = 5
	ExitConfig     = 7
	ExitSource     = 8
	ExitInstall    = 9
	ExitInternal   = 10
	ExitGeneration = 11
	ExitRuntime    = 12
	ExitCanceled   = 130
)

// CLIErrorAdapter turns a command error into log output, a message on
// stderr and a process exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, out: os.Stderr, exit: os.Exit}
}

// ExitCodeFor maps err to an exit code. Cancellation wins over the category
// so an interrupted build always exits with 130.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case stderrors.Is(err, context.Canceled):
		return ExitCanceled
	}
	if classified, ok := AsClassified(err); ok {
		return classified.exitCode()
	}
	return ExitGeneral
}

// FormatError renders err for the terminal. Without -v the cause is shown
// after the category instead of the full chain.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose || classified.Cause() == nil {
		return "Error: " + classified.Error()
	}
	return fmt.Sprintf("Error: %s (%s): %v", classified.Message(), classified.Category(), classified.Cause())
}

// HandleError logs and prints err, then exits with the mapped code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	a.logError(err)
	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) logError(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	level := slog.LevelError
	if classified.Severity() == SeverityWarning {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, classified.Message(), classified.LogAttrs()...)
}
