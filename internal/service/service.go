// Package service wires the sqlfence pipeline together:
// prompt -> generate -> validate -> execute -> record.
//
// Each stage is optional so the same Service backs the read-only commands
// (validate, grammar) as well as the full query path. Asking for a stage
// that is not configured returns ErrGeneratorUnavailable or
// ErrDatabaseUnavailable.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/sqlfence/internal/generate"
	"github.com/leapstack-labs/sqlfence/internal/state"
	"github.com/leapstack-labs/sqlfence/pkg/adapter"
	"github.com/leapstack-labs/sqlfence/pkg/grammar"
)

// Pipeline errors.
var (
	ErrGeneratorUnavailable = errors.New("SQL generation is not configured")
	ErrDatabaseUnavailable  = errors.New("no target database is configured")
)

// Options configures a Service. Only Compiled is required.
type Options struct {
	Compiled  *grammar.Compiled
	Generator generate.Generator
	Database  adapter.Adapter
	History   state.Store
	Limits    adapter.Limits
	Logger    *slog.Logger
}

// Service runs the pipeline for one compiled grammar.
type Service struct {
	compiled *grammar.Compiled
	gen      generate.Generator
	db       adapter.Adapter
	history  state.Store
	limits   adapter.Limits
	logger   *slog.Logger
}

// New builds a Service from opts.
func New(opts Options) (*Service, error) {
	if opts.Compiled == nil {
		return nil, fmt.Errorf("service requires a compiled grammar")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limits := opts.Limits
	if limits == (adapter.Limits{}) {
		limits = adapter.DefaultLimits()
	}
	return &Service{
		compiled: opts.Compiled,
		gen:      opts.Generator,
		db:       opts.Database,
		history:  opts.History,
		limits:   limits,
		logger:   logger,
	}, nil
}

// Compiled returns the grammar the service validates against.
func (s *Service) Compiled() *grammar.Compiled { return s.compiled }

// Limits returns the execution limits.
func (s *Service) Limits() adapter.Limits { return s.limits }

// Result is the outcome of a pipeline run. On failure it still carries
// whatever was produced before the failing stage, so SQL may be set when
// err is a rejection.
type Result struct {
	ID       string           `json:"id,omitempty"`
	Prompt   string           `json:"prompt,omitempty"`
	SQL      string           `json:"sql"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	Duration time.Duration    `json:"duration"`
}

// Validate checks sql against the grammar. Rejection detail is logged at
// debug level and never returned in the error message.
func (s *Service) Validate(sql string) (grammar.Query, error) {
	q, err := s.compiled.Validate(sql)
	if err != nil {
		s.logRejection(err)
	}
	return q, err
}

// Generate drafts validated SQL for prompt without executing it.
func (s *Service) Generate(ctx context.Context, prompt string) (generate.Draft, error) {
	if s.gen == nil {
		return generate.Draft{}, ErrGeneratorUnavailable
	}
	draft, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.logRejection(err)
		return draft, err
	}
	// A Generator implementation outside this module may skip validation.
	if _, err := s.Validate(draft.SQL); err != nil {
		return generate.Draft{SQL: draft.SQL}, err
	}
	return draft, nil
}

// Run executes the full pipeline for prompt and records the outcome.
func (s *Service) Run(ctx context.Context, prompt string) (*Result, error) {
	start := time.Now()
	res := &Result{Prompt: prompt}

	if s.gen == nil {
		return res, ErrGeneratorUnavailable
	}
	if s.db == nil {
		return res, ErrDatabaseUnavailable
	}

	draft, err := s.Generate(ctx, prompt)
	res.SQL = draft.SQL
	if err != nil {
		if errors.Is(err, generate.ErrEmptyPrompt) {
			return res, err
		}
		s.record(ctx, res, start, err)
		return res, err
	}

	err = s.execute(ctx, draft.Query, res)
	s.record(ctx, res, start, err)
	return res, err
}

// Execute validates sql and runs it. It is the path for caller-supplied SQL.
func (s *Service) Execute(ctx context.Context, sql string) (*Result, error) {
	start := time.Now()
	res := &Result{SQL: sql}

	if s.db == nil {
		return res, ErrDatabaseUnavailable
	}

	q, err := s.Validate(sql)
	if err != nil {
		s.record(ctx, res, start, err)
		return res, err
	}

	err = s.execute(ctx, q, res)
	s.record(ctx, res, start, err)
	return res, err
}

func (s *Service) execute(ctx context.Context, q grammar.Query, res *Result) error {
	out, err := s.db.Query(ctx, q, s.limits)
	if err != nil {
		s.logger.Error("query execution failed",
			slog.String("sql", q.String()),
			slog.String("error", err.Error()))
		return err
	}
	res.Columns = out.Columns
	res.Rows = out.Rows
	return nil
}

// Health reports the state of the target database.
func (s *Service) Health(ctx context.Context) (adapter.Health, error) {
	if s.db == nil {
		return adapter.Health{}, ErrDatabaseUnavailable
	}
	return adapter.CheckHealth(ctx, s.db, s.compiled, s.limits), nil
}

// History lists recorded runs. It returns an empty list when no store is configured.
func (s *Service) History(ctx context.Context, f state.Filter) ([]*state.Entry, error) {
	if s.history == nil {
		return []*state.Entry{}, nil
	}
	return s.history.List(ctx, f)
}

func (s *Service) record(ctx context.Context, res *Result, start time.Time, runErr error) {
	res.Duration = time.Since(start)
	if s.history == nil {
		return
	}

	e := &state.Entry{
		Prompt:   res.Prompt,
		SQL:      res.SQL,
		Status:   statusOf(runErr),
		RowCount: len(res.Rows),
		Duration: res.Duration,
	}
	if runErr != nil {
		e.Error = runErr.Error()
	}
	// History is best effort; a failing store never fails the request.
	if err := s.history.Record(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("failed to record history", slog.String("error", err.Error()))
		return
	}
	res.ID = e.ID
}

func statusOf(err error) state.Status {
	switch {
	case err == nil:
		return state.StatusSucceeded
	case grammar.IsRejection(err):
		return state.StatusRejected
	default:
		return state.StatusFailed
	}
}

func (s *Service) logRejection(err error) {
	var rej *grammar.Rejection
	if !errors.As(err, &rej) {
		return
	}
	attrs := []any{slog.String("reason", rej.Reason.Error())}
	if rej.Detail != nil {
		attrs = append(attrs, slog.String("detail", rej.Detail.Error()))
	}
	s.logger.Debug("query rejected", attrs...)
}
