package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"git.home.luguber.info/inful/docpipe/internal/pipeline"
)

var (
	outcomeStyles = map[pipeline.Outcome]lipgloss.Style{
		pipeline.OutcomeSuccess:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3FB950")),
		pipeline.OutcomeWarning:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D29922")),
		pipeline.OutcomeFailed:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		pipeline.OutcomeCanceled: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#888888")),
	}
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

// renderSummary renders the end-of-run summary: outcome, stage table and issues.
func renderSummary(r *pipeline.Report) string {
	if r == nil {
		return ""
	}
	style, ok := outcomeStyles[r.Outcome]
	if !ok {
		style = lipgloss.NewStyle().Bold(true)
	}
	head := fmt.Sprintf("%s %s", style.Render(strings.ToUpper(string(r.Outcome))),
		dimStyle.Render(fmt.Sprintf("%s build %s in %s", r.Command, r.BuildID, r.Duration().Round(time.Millisecond))))

	rows := make([][]string, 0, len(r.Stages))
	for _, s := range r.Stages {
		res, ok := r.StageResults[s]
		if !ok {
			res = pipeline.StageResultSkipped
		}
		dur := ""
		if d, ok := r.StageDurations[s]; ok {
			dur = d.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{string(s), string(res), dur})
	}
	stages := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("STAGE", "RESULT", "DURATION").
		Rows(rows...).
		String()

	parts := []string{head, stages}
	if r.PagesGenerated > 0 {
		parts = append(parts, fmt.Sprintf("%d page(s) generated", r.PagesGenerated))
	}
	if r.Retries > 0 {
		parts = append(parts, fmt.Sprintf("%d retr%s", r.Retries, plural(r.Retries, "y", "ies")))
	}
	for _, is := range r.Issues {
		parts = append(parts, fmt.Sprintf("%s %s [%s] %s", issueMarker(is.Severity), is.Stage, is.Code, firstLine(is.Message)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func issueMarker(sev pipeline.IssueSeverity) string {
	if sev == pipeline.SeverityWarning {
		return outcomeStyles[pipeline.OutcomeWarning].Render("!")
	}
	return outcomeStyles[pipeline.OutcomeFailed].Render("x")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
