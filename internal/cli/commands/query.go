package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlfence/internal/cli/output"
	"github.com/leapstack-labs/sqlfence/internal/service"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	SQL string
}

// queryOutput is the JSON form of the query command.
type queryOutput struct {
	*service.Result
	Error string `json:"error,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [prompt]",
		Short: "Answer a question against the target database",
		Long: `Run the full pipeline: generate SQL for the prompt, validate it and
execute it against the target database with the configured limits.

With --sql the generation step is skipped and the given statement is
validated and executed instead. Every run is recorded in the history.`,
		Example: `  # Ask a question
  sqlfence query "count people by gender"

  # Run a statement directly
  sqlfence query --sql "SELECT gender, COUNT(age) FROM default.people GROUP BY gender"

  # CSV for scripts
  sqlfence query "average age by fitness class" -o csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "" && opts.SQL == "" {
				return fmt.Errorf("a prompt or --sql is required")
			}
			if prompt != "" && opts.SQL != "" {
				return fmt.Errorf("pass either a prompt or --sql, not both")
			}
			return runQuery(cmd, prompt, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SQL, "sql", "", "Validate and execute this statement instead of generating one")

	return cmd
}

func runQuery(cmd *cobra.Command, prompt string, opts *QueryOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	n := needDatabase | needHistory
	if opts.SQL == "" {
		n |= needGenerator
	}
	svc, cleanup, err := cc.OpenService(cmd.Context(), n)
	if err != nil {
		return err
	}
	defer cleanup()

	res, qerr := execute(cmd.Context(), svc, prompt, opts.SQL)
	r := cc.Renderer

	if r.EffectiveMode() == output.ModeJSON {
		out := queryOutput{Result: res}
		if qerr != nil {
			out.Error = qerr.Error()
		}
		if err := r.JSON(out); err != nil {
			return err
		}
		return qerr
	}

	if qerr != nil {
		if res != nil && res.SQL != "" {
			r.Muted("sql: " + res.SQL)
		}
		return fmt.Errorf("query failed: %w", qerr)
	}

	switch r.EffectiveMode() {
	case output.ModeCSV:
	case output.ModeMarkdown:
		r.Println(output.FormatCodeBlock("sql", res.SQL))
		r.Println("")
	default:
		r.Muted(res.SQL)
	}
	return r.Table(res.Columns, res.Rows)
}

func execute(ctx context.Context, svc *service.Service, prompt, sql string) (*service.Result, error) {
	if sql != "" {
		return svc.Execute(ctx, sql)
	}
	return svc.Run(ctx, prompt)
}
