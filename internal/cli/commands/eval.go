package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/sqlfence/internal/cli/output"
	"github.com/leapstack-labs/sqlfence/internal/eval"
	"github.com/spf13/cobra"
)

// ErrEvalFailed is returned when at least one eval case fails.
var ErrEvalFailed = errors.New("eval cases failed")

// EvalOptions holds options for the eval command.
type EvalOptions struct {
	File        string
	Concurrency int
	ShowSQL     bool
}

// NewEvalCommand creates the eval command.
func NewEvalCommand() *cobra.Command {
	opts := &EvalOptions{}

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score SQL generation against test cases",
		Long: `Generate SQL for every eval case and check it for required and
forbidden fragments. Matching ignores whitespace.

Cases come from --file, then evals_path in the config, then the built-in
set for the default people dataset. The command exits non-zero when any
case fails.`,
		Example: `  sqlfence eval
  sqlfence eval --file evals.yaml --concurrency 8 --show-sql`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML file with eval cases")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", eval.DefaultConcurrency, "Maximum concurrent generations")
	cmd.Flags().BoolVar(&opts.ShowSQL, "show-sql", false, "Print the SQL of passing cases")

	return cmd
}

func runEval(cmd *cobra.Command, opts *EvalOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	cases, err := loadCases(cc, opts.File)
	if err != nil {
		return err
	}

	svc, cleanup, err := cc.OpenService(cmd.Context(), needGenerator)
	if err != nil {
		return err
	}
	defer cleanup()

	runner := &eval.Runner{
		Generator:   svc,
		Concurrency: opts.Concurrency,
		Logger:      cc.Logger,
	}
	report, err := runner.Run(cmd.Context(), cases)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(report); err != nil {
			return err
		}
	} else {
		report.Print(r.Writer(), opts.ShowSQL)
	}

	if !report.OK() {
		return fmt.Errorf("%w: %d of %d", ErrEvalFailed, report.Failed, report.Passed+report.Failed)
	}
	return nil
}

func loadCases(cc *CommandContext, file string) ([]eval.Case, error) {
	switch {
	case file != "":
		return eval.LoadFile(file)
	case cc.Cfg.EvalsPath != "":
		return eval.LoadFile(cc.Cfg.EvalsPath)
	default:
		return eval.DefaultCases(), nil
	}
}
