package pipeline

import (
	"context"
	"fmt"
	"slices"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// Stage runs one step of a build against the shared state.
type Stage func(ctx context.Context, st *State) error

type StageName string

// Stage names in execution order. verify_output only runs when enabled.
const (
	StageFetchSource       StageName = "fetch_source"
	StageInstallDev        StageName = "install_dev"
	StageInstallDocTooling StageName = "install_doc_tooling"
	StageEnsureOutput      StageName = "ensure_output"
	StageGenerateDocs      StageName = "generate_docs"
	StageVerifyOutput      StageName = "verify_output"
)

// StageErrorKind decides whether the runner stops after a failed stage.
// Only warnings let the build continue.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"
	StageErrorWarning  StageErrorKind = "warning"
	StageErrorCanceled StageErrorKind = "canceled"
)

type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Transient reports whether the cause was marked retryable. Recorded on issues
// so a report shows which failures might pass on a later run.
func (e *StageError) Transient() bool {
	return e != nil && e.Kind != StageErrorCanceled && errors.IsTransient(e.Err)
}

type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
	StageResultSkipped  StageResult = "skipped"
)

func NewFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func NewWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func NewCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// StageDef names a stage function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// Pipeline collects stage definitions in order; stages switched off by
// configuration are left out with AddIf.
type Pipeline struct{ defs []StageDef }

func NewPipeline() *Pipeline { return &Pipeline{} }

func (p *Pipeline) Add(name StageName, fn Stage) *Pipeline {
	p.defs = append(p.defs, StageDef{Name: name, Fn: fn})
	return p
}

func (p *Pipeline) AddIf(cond bool, name StageName, fn Stage) *Pipeline {
	if cond {
		return p.Add(name, fn)
	}
	return p
}

func (p *Pipeline) Build() []StageDef { return slices.Clone(p.defs) }

// Names lists stage names in order.
func Names(defs []StageDef) []StageName {
	out := make([]StageName, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Name)
	}
	return out
}
