// Package adapter defines how sqlfence executes validated queries.
//
// The only statement an adapter runs on behalf of a caller is a
// grammar.Query, which can only be obtained from grammar.Compiled.Validate. Concrete implementations live in
// pkg/adapters and register themselves with Register from an init function.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/sqlfence/pkg/grammar"
)

// Execution errors.
var (
	ErrNotConnected     = errors.New("database connection not established")
	ErrRowLimitExceeded = errors.New("result exceeds the maximum number of rows")
	ErrQueryTimeout     = errors.New("query exceeded the execution time limit")
	ErrUnvalidatedQuery = errors.New("query was not produced by the validator")
)

// Config holds connection settings for a target database.
type Config struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	Username string            `koanf:"username"`
	Password string            `koanf:"password"`
	Options  map[string]string `koanf:"options"`
	Params   map[string]any    `koanf:"params"`
}

// Limits bound a single query execution. Zero values disable a bound.
type Limits struct {
	MaxRows int           `koanf:"max_rows" json:"max_rows"`
	Timeout time.Duration `koanf:"timeout" json:"timeout"`
}

// DefaultLimits returns the bounds applied when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxRows: 1000, Timeout: 20 * time.Second}
}

// Result is a fully materialized query result.
type Result struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Adapter executes validated queries against one database.
type Adapter interface {
	// Connect opens the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Ping checks that the database answers a trivial query.
	Ping(ctx context.Context) error

	// Query runs q within limits and materializes the result.
	Query(ctx context.Context, q grammar.Query, limits Limits) (*Result, error)

	// DialectName returns the SQL dialect of the target, e.g. "duckdb".
	DialectName() string
}
