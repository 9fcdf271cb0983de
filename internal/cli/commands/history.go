package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/sqlfence/internal/cli/output"
	"github.com/leapstack-labs/sqlfence/internal/state"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit  int
	Status string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded query runs",
		Long:  `List the most recent pipeline runs recorded in the state database, newest first.`,
		Example: `  sqlfence history
  sqlfence history --status rejected --limit 10 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", state.DefaultListLimit, "Maximum number of entries")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Only show runs with this status: succeeded, rejected, failed")
	_ = cmd.RegisterFlagCompletionFunc("status", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(state.StatusSucceeded), string(state.StatusRejected), string(state.StatusFailed)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	status := state.Status(opts.Status)
	if status != "" && !status.Valid() {
		return fmt.Errorf("invalid status %q (want succeeded, rejected or failed)", opts.Status)
	}
	if opts.Limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := cc.OpenService(cmd.Context(), needHistory)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := svc.History(cmd.Context(), state.Filter{Status: status, Limit: opts.Limit})
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(entries)
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(1, fmt.Sprintf("History (%d runs)", len(entries))))
		r.Println("")
	}
	columns := []string{"created_at", "status", "rows", "duration", "prompt", "sql", "error"}
	rows := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]any{
			"created_at": e.CreatedAt.Local().Format(time.DateTime),
			"status":     output.Title(string(e.Status)),
			"rows":       e.RowCount,
			"duration":   e.Duration.Round(time.Millisecond).String(),
			"prompt":     e.Prompt,
			"sql":        e.SQL,
			"error":      e.Error,
		})
	}
	return r.Table(columns, rows)
}
