// Package orchestrator composes the documentation build: fetch the project
// source, install it in development mode, install the doc tooling, prepare the
// output directory and run the generator.
//
// Each operation is usable on its own. Run chains them through the pipeline
// runner, which halts on the first failure and leaves the effects of earlier
// stages in place.
package orchestrator
