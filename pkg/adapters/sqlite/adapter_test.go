package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/sqlfence/pkg/adapter"
	"github.com/leapstack-labs/sqlfence/pkg/grammar"
	"github.com/leapstack-labs/sqlfence/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr bool
	}{
		{name: "nil", input: nil, want: &Params{}},
		{
			name:  "read_only and busy timeout",
			input: map[string]any{"read_only": false, "busy_timeout": "250ms"},
			want:  &Params{ReadOnly: boolPtr(false), BusyTimeout: 250 * time.Millisecond},
		},
		{name: "unknown key", input: map[string]any{"journal": "wal"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		params *Params
		want   string
	}{
		{"memory", "", &Params{}, ":memory:"},
		{"file read-only by default", "body.db", &Params{}, "file:body.db?_pragma=query_only%281%29&mode=ro"},
		{"writable file", "body.db", &Params{ReadOnly: boolPtr(false)}, "file:body.db"},
		{"busy timeout", "body.db", &Params{ReadOnly: boolPtr(false), BusyTimeout: time.Second}, "file:body.db?_pragma=busy_timeout%281000%29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildDSN(tt.path, tt.params))
		})
	}
}

func TestAdapter_QueryReadOnlyFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "people.db")

	rw := New(nil)
	require.NoError(t, rw.Connect(ctx, adapter.Config{Path: path, Params: map[string]any{"read_only": false}}))
	_, err := rw.DB.ExecContext(ctx, "CREATE TABLE people (age INTEGER, gender TEXT)")
	require.NoError(t, err)
	_, err = rw.DB.ExecContext(ctx, "INSERT INTO people VALUES (30, 'F'), (40, 'M'), (50, 'F')")
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, adapter.Config{Path: path}))
	defer func() { _ = adp.Close() }()

	_, err = adp.DB.ExecContext(ctx, "DELETE FROM people")
	assert.Error(t, err, "read-only database must refuse writes")

	c, err := grammar.CompileConfig(schema.Config{
		Database:       "main",
		Table:          "people",
		Columns:        []string{"age", "gender"},
		NumericColumns: []string{"age"},
	})
	require.NoError(t, err)

	q, err := c.Validate("SELECT gender, COUNT(age) AS n FROM main.people GROUP BY gender ORDER BY gender")
	require.NoError(t, err)
	res, err := adp.Query(ctx, q, adapter.DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, []string{"gender", "n"}, res.Columns)
	assert.Equal(t, []map[string]any{
		{"gender": "F", "n": int64(2)},
		{"gender": "M", "n": int64(1)},
	}, res.Rows)

	h := adapter.CheckHealth(ctx, adp, c, adapter.DefaultLimits())
	assert.True(t, h.OK, h.Error)
	assert.Equal(t, int64(3), h.RowCount)
}

func TestAdapter_Memory(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, adapter.Config{Type: "sqlite"}))
	defer func() { _ = adp.Close() }()

	assert.NoError(t, adp.Ping(ctx))
	assert.Equal(t, "sqlite", adp.DialectName())
}
