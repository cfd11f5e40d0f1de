// Package errors provides the classified error primitives used across docpipe.
//
// A ClassifiedError carries a category (source, install, generation, config, ...),
// a severity, a retry strategy and structured context. Errors are built with the
// fluent ErrorBuilder:
//
//	err := errors.SourceError("clone failed").
//		WithCause(cause).
//		WithContext("url", repoURL).
//		Build()
//
// CLIErrorAdapter maps categories to process exit codes.
package errors
