// Package toolexec runs the external tools a documentation build depends on
// (pip, setup.py, sphinx-build). Tool output is streamed to the caller's
// writers unchanged, and the last lines are retained so that a failure can
// carry the tool's own diagnostics.
package toolexec
