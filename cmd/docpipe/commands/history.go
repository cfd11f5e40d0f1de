package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"git.home.luguber.info/inful/docpipe/internal/eventstore"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Database string `help:"History database (overrides history.database)" type:"path"`
	Limit    int    `short:"n" help:"Number of builds to show" default:"10"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	db := cfg.History.Database
	if h.Database != "" {
		db = h.Database
	}
	if db == "" {
		return errors.ConfigError("no build history database configured (set history.database or --database)").Build()
	}

	store, err := eventstore.NewSQLiteStore(db)
	if err != nil {
		return errors.EventStoreError("failed to open build history").WithCause(err).WithContext("path", db).Build()
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	builds, err := eventstore.History(ctx, store, h.Limit)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(g.Stdout, renderHistory(builds))
	return nil
}

func renderHistory(builds []eventstore.BuildSummary) string {
	if len(builds) == 0 {
		return "No builds recorded."
	}
	rows := make([][]string, 0, len(builds))
	for _, b := range builds {
		failed := b.FailedStage
		if failed == "" {
			failed = "-"
		}
		rows = append(rows, []string{
			b.StartedAt.Local().Format("2006-01-02 15:04:05"),
			b.BuildID,
			b.Command,
			b.Status,
			b.Duration.Round(time.Millisecond).String(),
			fmt.Sprint(b.PagesGenerated),
			failed,
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("STARTED", "BUILD", "COMMAND", "STATUS", "DURATION", "PAGES", "FAILED STAGE").
		Rows(rows...).
		String()
}
