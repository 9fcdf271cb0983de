package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/sqlfence/pkg/grammar"
)

// Health describes the state of the target database.
type Health struct {
	OK       bool          `json:"ok"`
	Dialect  string        `json:"dialect"`
	Table    string        `json:"table"`
	RowCount int64         `json:"row_count"`
	Latency  time.Duration `json:"latency"`
	Error    string        `json:"error,omitempty"`
}

// CountQuery returns the validated row-count query for the pinned table.
// It counts the first column, so rows where that column is NULL are not counted.
func CountQuery(c *grammar.Compiled) (grammar.Query, error) {
	s := c.Schema()
	text := fmt.Sprintf("SELECT COUNT(%s) AS row_count FROM %s", s.Columns()[0], s.Qualified())
	return c.Validate(text)
}

// CheckHealth pings a and counts the rows of the pinned table. The count
// query goes through the validator like any other query.
func CheckHealth(ctx context.Context, a Adapter, c *grammar.Compiled, limits Limits) Health {
	start := time.Now()
	h := Health{Dialect: a.DialectName(), Table: c.Schema().Qualified()}
	fail := func(err error) Health {
		h.Error = err.Error()
		h.Latency = time.Since(start)
		return h
	}

	if err := a.Ping(ctx); err != nil {
		return fail(err)
	}
	q, err := CountQuery(c)
	if err != nil {
		return fail(fmt.Errorf("count query: %w", err))
	}
	limits.MaxRows = 1
	res, err := a.Query(ctx, q, limits)
	if err != nil {
		return fail(err)
	}
	if len(res.Rows) != 1 {
		return fail(fmt.Errorf("count query returned %d rows", len(res.Rows)))
	}
	n, err := toInt64(res.Rows[0]["row_count"])
	if err != nil {
		return fail(err)
	}

	h.OK = true
	h.RowCount = n
	h.Latency = time.Since(start)
	return h
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil //nolint:gosec // row counts fit in int64
	case float64:
		return int64(n), nil
	case string:
		var out int64
		if _, err := fmt.Sscan(n, &out); err != nil {
			return 0, fmt.Errorf("row count %q is not a number", n)
		}
		return out, nil
	default:
		return 0, fmt.Errorf("unexpected row count type %T", v)
	}
}
