// Package pipeline runs a documentation build as an ordered list of typed
// stages. Execution is strictly sequential and fail-fast: the first fatal or
// canceled stage stops the run, and effects of earlier stages are left in
// place. Every run produces a Report with per-stage durations, results and
// issues carrying stable codes.
package pipeline
