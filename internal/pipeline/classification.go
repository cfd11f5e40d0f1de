package pipeline

import "errors"

// StageOutcome is the normalized result of executing one stage.
type StageOutcome struct {
	Stage     StageName
	Error     *StageError
	Result    StageResult
	IssueCode IssueCode
	Severity  IssueSeverity
	Transient bool
	Abort     bool
}

func resultFromStageErrorKind(k StageErrorKind) StageResult {
	switch k {
	case StageErrorWarning:
		return StageResultWarning
	case StageErrorCanceled:
		return StageResultCanceled
	default:
		return StageResultFatal
	}
}

func severityFromStageErrorKind(k StageErrorKind) IssueSeverity {
	if k == StageErrorWarning {
		return SeverityWarning
	}
	return SeverityError
}

// ClassifyStageResult converts the raw error returned by a stage into a StageOutcome.
// Errors that are not a *StageError are fatal. A context error is treated as cancellation.
func ClassifyStageResult(stage StageName, err error) StageOutcome {
	if err == nil {
		return StageOutcome{Stage: stage, Result: StageResultSuccess}
	}

	var se *StageError
	if !errors.As(err, &se) {
		kind := StageErrorFatal
		if isContextError(err) {
			kind = StageErrorCanceled
		}
		se = &StageError{Kind: kind, Stage: stage, Err: err}
	}

	if se.Kind == StageErrorCanceled {
		return StageOutcome{
			Stage:     stage,
			Error:     se,
			Result:    StageResultCanceled,
			IssueCode: IssueCanceled,
			Severity:  SeverityError,
			Abort:     true,
		}
	}

	return StageOutcome{
		Stage:     stage,
		Error:     se,
		Result:    resultFromStageErrorKind(se.Kind),
		IssueCode: classifyIssueCode(se),
		Severity:  severityFromStageErrorKind(se.Kind),
		Transient: se.Transient(),
		Abort:     se.Kind == StageErrorFatal,
	}
}

// classifyIssueCode maps the sentinel carried by a stage error to its issue code.
// Verification sentinels are checked first because a strict verification failure
// also carries ErrGenerationFailure.
func classifyIssueCode(se *StageError) IssueCode {
	switch {
	case errors.Is(se.Err, ErrMissingPage):
		return IssueMissingPage
	case errors.Is(se.Err, ErrBrokenLink):
		return IssueBrokenLink
	case errors.Is(se.Err, ErrSourceUnavailable):
		return IssueSourceUnavailable
	case errors.Is(se.Err, ErrInstallFailure):
		return IssueInstallFailure
	case errors.Is(se.Err, ErrOutputDirectory):
		return IssueOutputDirectory
	case errors.Is(se.Err, ErrGenerationFailure):
		return IssueGenerationFailure
	default:
		return IssueGenericStageError
	}
}
