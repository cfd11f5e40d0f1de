package pipeline

import (
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/version"
)

// Outcome is the typed enumeration of final build result states.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// IssueCode enumerates machine-parseable issue identifiers.
// Codes are a stable contract and are only ever appended.
type IssueCode string

const (
	IssueSourceUnavailable IssueCode = "SOURCE_UNAVAILABLE"
	IssueInstallFailure    IssueCode = "INSTALL_FAILURE"
	IssueGenerationFailure IssueCode = "GENERATION_FAILURE"
	IssueOutputDirectory   IssueCode = "OUTPUT_DIRECTORY"
	IssueMissingPage       IssueCode = "VERIFY_MISSING_PAGE"
	IssueBrokenLink        IssueCode = "VERIFY_BROKEN_LINK"
	IssueCanceled          IssueCode = "BUILD_CANCELED"
	IssueGenericStageError IssueCode = "GENERIC_STAGE_ERROR"
)

// IssueSeverity represents normalized severity levels.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a structured entry describing a discrete problem encountered during a run.
type Issue struct {
	Code      IssueCode     `json:"code"`
	Stage     StageName     `json:"stage"`
	Severity  IssueSeverity `json:"severity"`
	Message   string        `json:"message"`
	Transient bool          `json:"transient"`
}

// Report captures the result of one run.
type Report struct {
	SchemaVersion  int                         `json:"schema_version"`
	BuildID        string                      `json:"build_id"`
	Command        string                      `json:"command"`
	Start          time.Time                   `json:"start"`
	End            time.Time                   `json:"end"`
	Stages         []StageName                 `json:"stages"`
	StageDurations map[StageName]time.Duration `json:"stage_durations"`
	StageResults   map[StageName]StageResult   `json:"stage_results"`
	Issues         []Issue                     `json:"issues,omitempty"`
	Outcome        Outcome                     `json:"outcome"`
	Retries        int                         `json:"retries,omitempty"`
	PagesGenerated int                         `json:"pages_generated,omitempty"`
	Version        string                      `json:"docpipe_version"`

	Errors   []error `json:"-"` // fatal/canceled errors (at most one, the run stops on it)
	Warnings []error `json:"-"`
}

// NewReport constructs an empty report stamped with the current time.
func NewReport(buildID, command string) *Report {
	return &Report{
		SchemaVersion:  1,
		BuildID:        buildID,
		Command:        command,
		Start:          time.Now(),
		StageDurations: make(map[StageName]time.Duration),
		StageResults:   make(map[StageName]StageResult),
		Version:        version.Version,
	}
}

// AddIssue appends a structured issue and mirrors severity into Errors/Warnings.
func (r *Report) AddIssue(code IssueCode, stage StageName, severity IssueSeverity, msg string, transient bool, err error) {
	r.Issues = append(r.Issues, Issue{Code: code, Stage: stage, Severity: severity, Message: msg, Transient: transient})
	if err == nil {
		return
	}
	switch severity {
	case SeverityError:
		r.Errors = append(r.Errors, err)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, err)
	}
}

// RecordStageResult stores the result of a stage.
func (r *Report) RecordStageResult(stage StageName, res StageResult) {
	if r.StageResults == nil {
		r.StageResults = make(map[StageName]StageResult)
	}
	r.StageResults[stage] = res
}

// Ran reports whether stage was started during the run.
func (r *Report) Ran(stage StageName) bool {
	res, ok := r.StageResults[stage]
	return ok && res != StageResultSkipped
}

// Finish sets the end time of the report.
func (r *Report) Finish() { r.End = time.Now() }

// Duration is the wall time of the run (zero until Finish).
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return 0
	}
	return r.End.Sub(r.Start)
}

// Err returns the error that stopped the run, or nil.
func (r *Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// FailedStage returns the stage that stopped the run, if any.
func (r *Report) FailedStage() (StageName, bool) {
	var se *StageError
	if errors.As(r.Err(), &se) {
		return se.Stage, true
	}
	return "", false
}

// DeriveOutcome sets Outcome from the recorded errors and warnings.
func (r *Report) DeriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			var se *StageError
			if errors.As(e, &se) && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				return
			}
		}
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("build=%s command=%s duration=%s stages=%d errors=%d warnings=%d pages=%d outcome=%s",
		r.BuildID, r.Command, r.Duration().Truncate(time.Millisecond), len(r.StageDurations),
		len(r.Errors), len(r.Warnings), r.PagesGenerated, r.Outcome)
}
