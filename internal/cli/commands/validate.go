package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/sqlfence/internal/cli/output"
	"github.com/leapstack-labs/sqlfence/internal/service"
	"github.com/leapstack-labs/sqlfence/pkg/grammar"
	"github.com/spf13/cobra"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Input string
}

// validateOutput is the JSON form of one validation.
type validateOutput struct {
	SQL   string `json:"sql"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [SQL]",
		Short: "Check SQL against the query grammar",
		Long: `Check a SQL statement against the grammar compiled from the schema.

The statement is read from the arguments, from --input, or from stdin when
it is piped. Without any of these on a terminal, an interactive prompt opens.
The command exits non-zero when the statement is rejected.`,
		Example: `  # Validate a statement
  sqlfence validate "SELECT gender, COUNT(age) FROM default.people GROUP BY gender"

  # Validate from a file
  sqlfence validate --input query.sql

  # Interactive mode
  sqlfence validate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, opts *ValidateOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := cc.OpenService(cmd.Context(), 0)
	if err != nil {
		return err
	}
	defer cleanup()

	var sql string
	switch {
	case len(args) > 0:
		sql = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sql = string(content)
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sql = string(content)
	default:
		return runValidateREPL(cmd, cc, svc)
	}

	// Files and pipes usually end with a newline the grammar would reject.
	if len(args) == 0 {
		sql = strings.TrimRight(sql, "\r\n")
	}
	return renderValidation(cc.Renderer, svc, sql)
}

func renderValidation(r *output.Renderer, svc *service.Service, sql string) error {
	_, verr := svc.Validate(sql)

	if r.EffectiveMode() == output.ModeJSON {
		out := validateOutput{SQL: sql, Valid: verr == nil}
		if verr != nil {
			out.Error = verr.Error()
		}
		if err := r.JSON(out); err != nil {
			return err
		}
		return verr
	}

	if verr == nil {
		r.Success("valid")
		return nil
	}
	if grammar.IsRejection(verr) {
		return fmt.Errorf("rejected: %w", verr)
	}
	return verr
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	return output.IsTerminal(f)
}
