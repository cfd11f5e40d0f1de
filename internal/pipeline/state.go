package pipeline

// State is shared between the stages of one run. Stages read their inputs
// from it and publish what later stages need.
type State struct {
	BuildID string
	Report  *Report

	// SourcePath is the checked-out source tree (set by fetch_source, or preset when fetching is skipped).
	SourcePath string
	// DocsPath is the documentation source tree.
	DocsPath string
	// OutputPath is the generator's output directory.
	OutputPath string
	// DocSources lists documentation sources relative to DocsPath, recorded by generate_docs.
	DocSources []string
}

// NewState creates run state with a fresh report.
func NewState(buildID, command string) *State {
	return &State{BuildID: buildID, Report: NewReport(buildID, command)}
}
