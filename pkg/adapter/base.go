package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/sqlfence/pkg/grammar"
)

// BaseSQLAdapter provides database/sql plumbing for adapters.
// Embed it in concrete adapters to get Close, Ping and Query.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		b.logger().Debug("closing database connection")
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Ping runs SELECT 1.
func (b *BaseSQLAdapter) Ping(ctx context.Context) error {
	if b.DB == nil {
		return ErrNotConnected
	}
	var one int
	if err := b.DB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Query runs q with the statement timeout and row cap from limits. The query
// text is sent exactly as validated. Exceeding MaxRows fails the whole query
// rather than truncating it.
func (b *BaseSQLAdapter) Query(ctx context.Context, q grammar.Query, limits Limits) (*Result, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	if q.IsZero() {
		return nil, ErrUnvalidatedQuery
	}

	if limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.Timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := b.query(ctx, q.String(), limits.MaxRows)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (%s)", ErrQueryTimeout, limits.Timeout)
		}
		return nil, err
	}
	b.logger().Debug("query executed",
		slog.Int("rows", len(res.Rows)),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

func (b *BaseSQLAdapter) query(ctx context.Context, sqlStr string, maxRows int) (*Result, error) {
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	res := &Result{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		if maxRows > 0 && len(res.Rows) >= maxRows {
			return nil, fmt.Errorf("%w (%d)", ErrRowLimitExceeded, maxRows)
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return res, nil
}

// normalizeValue converts driver byte slices to strings so results encode
// cleanly as JSON.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func (b *BaseSQLAdapter) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}
