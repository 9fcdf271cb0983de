package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlfence/internal/cli/config"
	"github.com/leapstack-labs/sqlfence/internal/cli/output"
	"github.com/leapstack-labs/sqlfence/internal/generate"
	"github.com/leapstack-labs/sqlfence/internal/service"
	"github.com/leapstack-labs/sqlfence/internal/state"
	"github.com/leapstack-labs/sqlfence/pkg/adapter"
	"github.com/leapstack-labs/sqlfence/pkg/grammar"
	"github.com/spf13/cobra"
)

// Stages a command needs beyond the compiled grammar.
type needs uint8

const (
	needGenerator needs = 1 << iota
	needDatabase
	needHistory
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}, nil
}

// getConfig returns the configuration loaded by the root command, loading it
// from the working directory when a command runs on its own.
func getConfig() (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", nil)
}

// Compile builds the grammar for the configured schema. Errors are fatal.
func (cc *CommandContext) Compile() (*grammar.Compiled, error) {
	c, err := grammar.CompileConfig(cc.Cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("invalid schema configuration: %w", err)
	}
	return c, nil
}

// OpenService builds the pipeline with the stages in n. The returned cleanup
// closes whatever was opened and must be called (typically via defer).
func (cc *CommandContext) OpenService(ctx context.Context, n needs) (*service.Service, func(), error) {
	compiled, err := cc.Compile()
	if err != nil {
		return nil, nil, err
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}
	fail := func(err error) (*service.Service, func(), error) {
		cleanup()
		return nil, nil, err
	}

	opts := service.Options{
		Compiled: compiled,
		Limits:   cc.Cfg.Limits,
		Logger:   cc.Logger,
	}

	if n&needGenerator != 0 {
		gen, err := generate.New(cc.Cfg.Generator, compiled, cc.Logger)
		if err != nil {
			if errors.Is(err, generate.ErrNotConfigured) {
				return fail(fmt.Errorf("%w (set generator.api_key or OPENAI_API_KEY)", err))
			}
			return fail(err)
		}
		opts.Generator = gen
	}

	if n&needDatabase != 0 {
		if !cc.Cfg.HasTarget() {
			return fail(fmt.Errorf("%w (set target in %s or pass --database)", service.ErrDatabaseUnavailable, config.ConfigFileName))
		}
		target, err := adapter.OpenTarget(ctx, *cc.Cfg.Target, compiled, cc.Cfg.Limits, cc.Logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, target.Close)
		opts.Database = target
	}

	if n&needHistory != 0 && cc.Cfg.StatePath != "" {
		store, err := openHistory(cc.Cfg.StatePath, cc.Logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, store.Close)
		opts.History = store
	}

	svc, err := service.New(opts)
	if err != nil {
		return fail(err)
	}
	return svc, cleanup, nil
}

func openHistory(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, err
	}
	return store, nil
}
