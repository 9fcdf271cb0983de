package eval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/leapstack-labs/sqlfence/internal/generate"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight generations when Runner.Concurrency is unset.
const DefaultConcurrency = 4

// Runner scores cases against a generator.
type Runner struct {
	Generator   generate.Generator
	Concurrency int
	Logger      *slog.Logger
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Case     Case          `json:"-"`
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	SQL      string        `json:"sql,omitempty"`
	Problems []string      `json:"problems,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the outcome of a run, in case order.
type Report struct {
	Results []CaseResult `json:"results"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
}

// OK reports whether every case passed.
func (r *Report) OK() bool { return r.Failed == 0 }

// Run generates SQL for every case and scores it. A failing case never stops
// the run; only ctx cancellation does.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Report, error) {
	for i, c := range cases {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("case %d: %w", i+1, err)
		}
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]CaseResult, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, c := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.runCase(gctx, c, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Results: results}
	for _, res := range results {
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	logger.Info("eval run finished",
		slog.Int("passed", report.Passed),
		slog.Int("failed", report.Failed))
	return report, nil
}

func (r *Runner) runCase(ctx context.Context, c Case, logger *slog.Logger) CaseResult {
	start := time.Now()
	res := CaseResult{Case: c, Name: c.Name}

	draft, err := r.Generator.Generate(ctx, c.Prompt)
	res.SQL = draft.SQL
	res.Duration = time.Since(start)
	if err != nil {
		logger.Error("eval request failed", slog.String("case", c.Name), slog.String("error", err.Error()))
		res.Error = err.Error()
		return res
	}

	res.Problems = c.Check(draft.SQL)
	res.Passed = len(res.Problems) == 0
	return res
}

// Print writes a human-readable report.
func (r *Report) Print(w io.Writer, showSQL bool) {
	for i, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(w, "Eval %d: %s ... %s\n", i+1, res.Name, status)
		switch {
		case res.Error != "":
			fmt.Fprintf(w, "  - Error: %s\n", res.Error)
		case !res.Passed:
			for _, p := range res.Problems {
				fmt.Fprintf(w, "  - %s\n", p)
			}
			fmt.Fprintf(w, "  - Got: %s\n", res.SQL)
		case showSQL:
			fmt.Fprintf(w, "  - SQL: %s\n", res.SQL)
		}
	}
	fmt.Fprintf(w, "Results: %d/%d passed\n", r.Passed, r.Passed+r.Failed)
}
