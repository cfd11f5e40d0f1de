package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Run executes defs in order against st, recording every outcome in st.Report.
// It stops at the first fatal or canceled stage and returns that stage's
// *StageError; stages after it are recorded as skipped and never invoked.
// Warnings are recorded and execution continues. The report is finished and
// its outcome derived before Run returns.
func Run(ctx context.Context, st *State, defs []StageDef, obs Observer) error {
	if obs == nil {
		obs = NoopObserver{}
	}
	if st.Report == nil {
		st.Report = NewReport(st.BuildID, "")
	}
	report := st.Report
	report.Stages = Names(defs)
	obs.OnBuildStart(report)

	runErr := runStages(ctx, st, defs, obs)

	report.Finish()
	report.DeriveOutcome()
	obs.OnBuildComplete(report)
	return runErr
}

func runStages(ctx context.Context, st *State, defs []StageDef, obs Observer) error {
	report := st.Report
	for i, def := range defs {
		if err := ctx.Err(); err != nil {
			se := NewCanceledStageError(def.Name, err)
			report.AddIssue(IssueCanceled, def.Name, SeverityError, se.Error(), false, se)
			report.RecordStageResult(def.Name, StageResultCanceled)
			obs.OnStageComplete(def.Name, 0, StageResultCanceled)
			skipRemaining(report, defs[i+1:])
			return se
		}

		obs.OnStageStart(def.Name)
		t0 := time.Now()
		err := def.Fn(ctx, st)
		dur := time.Since(t0)
		report.StageDurations[def.Name] = dur

		out := ClassifyStageResult(def.Name, err)
		if out.Error != nil {
			report.AddIssue(out.IssueCode, out.Stage, out.Severity, out.Error.Err.Error(), out.Transient, out.Error)
		}
		report.RecordStageResult(def.Name, out.Result)
		obs.OnStageComplete(def.Name, dur, out.Result)

		if out.Abort {
			skipRemaining(report, defs[i+1:])
			if out.Error != nil {
				return out.Error
			}
			return fmt.Errorf("stage %s aborted", def.Name)
		}
	}
	return nil
}

func skipRemaining(report *Report, rest []StageDef) {
	for _, d := range rest {
		report.RecordStageResult(d.Name, StageResultSkipped)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
