package commands

import (
	"fmt"

	"github.com/leapstack-labs/sqlfence/internal/cli/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// GrammarOptions holds options for the grammar command.
type GrammarOptions struct {
	Format string
}

// NewGrammarCommand creates the grammar command.
func NewGrammarCommand() *cobra.Command {
	opts := &GrammarOptions{}

	cmd := &cobra.Command{
		Use:   "grammar",
		Short: "Print the compiled query grammar",
		Long: `Print the grammar compiled from the configured schema.

The default format is the Lark text handed to the model as a decoding
constraint. The yaml and json formats list every rule and terminal.`,
		Example: `  # Print the Lark grammar
  sqlfence grammar

  # Dump the rule and terminal tables
  sqlfence grammar --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGrammar(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "lark", "Grammar format: lark, yaml, json")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"lark", "yaml", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runGrammar(cmd *cobra.Command, opts *GrammarOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	compiled, err := cc.Compile()
	if err != nil {
		return err
	}
	r := cc.Renderer

	format := opts.Format
	if !cmd.Flags().Changed("format") && r.EffectiveMode() == output.ModeJSON {
		format = "json"
	}

	switch format {
	case "json":
		return r.JSON(compiled.Document())
	case "yaml":
		enc := yaml.NewEncoder(r.Writer())
		enc.SetIndent(2)
		if err := enc.Encode(compiled.Document()); err != nil {
			return fmt.Errorf("failed to encode grammar: %w", err)
		}
		return enc.Close()
	case "lark":
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Println(output.FormatHeader(1, "Grammar: "+compiled.Schema().Qualified()))
			r.Println("")
			r.Println(output.FormatCodeBlock("lark", compiled.Text()))
			return nil
		}
		r.Printf("%s", compiled.Text())
		return nil
	default:
		return fmt.Errorf("unknown grammar format %q (want lark, yaml or json)", format)
	}
}
