package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/toolexec"
)

// DoctorCmd implements the 'doctor' command. It only reports; docpipe never
// installs or configures these tools itself.
type DoctorCmd struct{}

func (d *DoctorCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, _ = fmt.Fprintln(g.Stdout, renderTools(detectTools(ctx, cfg)))
	return nil
}

func detectTools(ctx context.Context, cfg *config.Config) []toolexec.ToolInfo {
	pip := toolexec.Detect(ctx, cfg.Install.Python, "-m", "pip", "--version")
	pip.Name = "pip"
	return []toolexec.ToolInfo{
		toolexec.Detect(ctx, cfg.Install.Python, "--version"),
		pip,
		toolexec.Detect(ctx, cfg.Docs.SphinxBuild, "--version"),
		toolexec.Detect(ctx, "pandoc", "--version"),
		toolexec.Detect(ctx, "git", "--version"),
	}
}

func renderTools(tools []toolexec.ToolInfo) string {
	rows := make([][]string, 0, len(tools))
	for _, t := range tools {
		status, version, path := "missing", "-", "-"
		if t.Found {
			status, path = "ok", t.Path
			if t.Version != "" {
				version = t.Version
			}
		}
		rows = append(rows, []string{t.Name, status, version, path})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("TOOL", "STATUS", "VERSION", "PATH").
		Rows(rows...).
		String()
}
