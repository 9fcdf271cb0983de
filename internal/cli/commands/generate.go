package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlfence/internal/cli/output"
	"github.com/spf13/cobra"
)

// generateOutput is the JSON form of the generate command.
type generateOutput struct {
	Prompt string `json:"prompt"`
	SQL    string `json:"sql"`
	Error  string `json:"error,omitempty"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Draft SQL for a question without running it",
		Long: `Ask the model for SQL answering the prompt, constrained by the grammar.

The draft is validated before it is printed. Nothing is executed and
nothing is recorded in the history.`,
		Example: `  sqlfence generate "average height by fitness class"
  sqlfence generate "how many people are over 40" --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, strings.Join(args, " "))
		},
	}
}

func runGenerate(cmd *cobra.Command, prompt string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := cc.OpenService(cmd.Context(), needGenerator)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cc.Renderer
	draft, gerr := svc.Generate(cmd.Context(), prompt)

	if r.EffectiveMode() == output.ModeJSON {
		out := generateOutput{Prompt: prompt, SQL: draft.SQL}
		if gerr != nil {
			out.Error = gerr.Error()
		}
		if err := r.JSON(out); err != nil {
			return err
		}
		return gerr
	}

	if gerr != nil {
		if draft.SQL != "" {
			r.Muted("draft: " + draft.SQL)
		}
		return fmt.Errorf("generation failed: %w", gerr)
	}
	return r.SQL(draft.SQL)
}
