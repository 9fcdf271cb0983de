package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/sqlfence/internal/generate"
	"github.com/leapstack-labs/sqlfence/internal/state"
	"github.com/leapstack-labs/sqlfence/internal/testutil"
	"github.com/leapstack-labs/sqlfence/pkg/adapter"
	"github.com/leapstack-labs/sqlfence/pkg/grammar"
	"github.com/leapstack-labs/sqlfence/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	sql   string
	err   error
	calls int
}

// Generate returns the canned SQL without validating it, like a foreign
// Generator implementation would.
func (f *fakeGenerator) Generate(_ context.Context, prompt string) (generate.Draft, error) {
	f.calls++
	if prompt == "" {
		return generate.Draft{}, generate.ErrEmptyPrompt
	}
	if f.err != nil {
		return generate.Draft{}, f.err
	}
	return generate.Draft{SQL: f.sql}, nil
}

type mockAdapter struct {
	adapter.BaseSQLAdapter
}

func (m *mockAdapter) Connect(context.Context, adapter.Config) error { return nil }
func (m *mockAdapter) DialectName() string                           { return "mock" }

func peopleGrammar(t *testing.T) *grammar.Compiled {
	t.Helper()
	c, err := grammar.CompileConfig(schema.Config{
		Database:       "default",
		Table:          "people",
		Columns:        []string{"age", "gender", "height_cm", "fitness_class"},
		NumericColumns: []string{"age", "height_cm"},
	})
	require.NoError(t, err)
	return c
}

type fixture struct {
	svc     *Service
	gen     *fakeGenerator
	mock    sqlmock.Sqlmock
	history *state.SQLiteStore
	logs    *testutil.LogBuffer
}

func newFixture(t *testing.T, sql string) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	history := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, history.Open(":memory:"))
	t.Cleanup(func() { _ = history.Close() })

	logger, logs := testutil.NewCaptureLogger()
	gen := &fakeGenerator{sql: sql}
	svc, err := New(Options{
		Compiled:  peopleGrammar(t),
		Generator: gen,
		Database:  &mockAdapter{adapter.BaseSQLAdapter{DB: db}},
		History:   history,
		Logger:    logger,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, gen: gen, mock: mock, history: history, logs: logs}
}

func (f *fixture) entries(t *testing.T) []*state.Entry {
	t.Helper()
	entries, err := f.history.List(context.Background(), state.Filter{})
	require.NoError(t, err)
	return entries
}

func TestService_RunSucceeds(t *testing.T) {
	const sql = "SELECT gender, AVG(age) AS avg_age FROM default.people GROUP BY gender"
	f := newFixture(t, sql)
	f.mock.ExpectQuery(sql).WillReturnRows(
		sqlmock.NewRows([]string{"gender", "avg_age"}).AddRow("F", 41.5).AddRow("M", 39.0))

	res, err := f.svc.Run(context.Background(), "average age by gender")
	require.NoError(t, err)
	assert.Equal(t, sql, res.SQL)
	assert.Equal(t, []string{"gender", "avg_age"}, res.Columns)
	assert.Len(t, res.Rows, 2)
	assert.NotEmpty(t, res.ID)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, res.ID, entries[0].ID)
	assert.Equal(t, state.StatusSucceeded, entries[0].Status)
	assert.Equal(t, "average age by gender", entries[0].Prompt)
	assert.Equal(t, 2, entries[0].RowCount)
}

func TestService_RunRejectsUnsafeGeneratorOutput(t *testing.T) {
	f := newFixture(t, "SELECT * FROM default.people")

	res, err := f.svc.Run(context.Background(), "everything")
	assert.ErrorIs(t, err, grammar.ErrGrammarMismatch)
	assert.Equal(t, "SELECT * FROM default.people", res.SQL)
	assert.Nil(t, res.Rows)
	assert.NoError(t, f.mock.ExpectationsWereMet(), "a rejected query must not reach the database")

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, state.StatusRejected, entries[0].Status)
	assert.Equal(t, "query does not match the allowed grammar", entries[0].Error)

	assert.Contains(t, f.logs.String(), `"msg":"query rejected"`)
	assert.Contains(t, f.logs.String(), `"detail":`)
}

func TestService_RunFailures(t *testing.T) {
	tests := []struct {
		name       string
		genErr     error
		dbErr      error
		wantStatus state.Status
		recorded   bool
	}{
		{
			name:       "generator failure",
			genErr:     &generate.UpstreamError{StatusCode: 500, Message: "boom"},
			wantStatus: state.StatusFailed,
			recorded:   true,
		},
		{
			name:       "database failure",
			dbErr:      assert.AnError,
			wantStatus: state.StatusFailed,
			recorded:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const sql = "SELECT age FROM default.people"
			f := newFixture(t, sql)
			f.gen.err = tt.genErr
			if tt.dbErr != nil {
				f.mock.ExpectQuery(sql).WillReturnError(tt.dbErr)
			}

			_, err := f.svc.Run(context.Background(), "ages")
			require.Error(t, err)

			entries := f.entries(t)
			if tt.recorded {
				require.Len(t, entries, 1)
				assert.Equal(t, tt.wantStatus, entries[0].Status)
				assert.NotEmpty(t, entries[0].Error)
			}
		})
	}
}

func TestService_RunEmptyPromptNotRecorded(t *testing.T) {
	f := newFixture(t, "SELECT age FROM default.people")

	_, err := f.svc.Run(context.Background(), "")
	assert.ErrorIs(t, err, generate.ErrEmptyPrompt)
	assert.Empty(t, f.entries(t))
}

func TestService_Unconfigured(t *testing.T) {
	svc, err := New(Options{Compiled: peopleGrammar(t)})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Run(ctx, "q")
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)
	_, err = svc.Generate(ctx, "q")
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)
	_, err = svc.Execute(ctx, "SELECT age FROM default.people")
	assert.ErrorIs(t, err, ErrDatabaseUnavailable)
	_, err = svc.Health(ctx)
	assert.ErrorIs(t, err, ErrDatabaseUnavailable)

	entries, err := svc.History(ctx, state.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Equal(t, adapter.DefaultLimits(), svc.Limits())

	_, err = New(Options{})
	assert.Error(t, err)
}

func TestService_Execute(t *testing.T) {
	const sql = "SELECT COUNT(age) AS n FROM default.people"
	f := newFixture(t, "")
	f.mock.ExpectQuery(sql).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(7)))

	res, err := f.svc.Execute(context.Background(), sql)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"n": int64(7)}}, res.Rows)
	assert.Equal(t, 0, f.gen.calls)

	_, err = f.svc.Execute(context.Background(), "DROP TABLE default.people")
	assert.ErrorIs(t, err, grammar.ErrGrammarMismatch)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	entries := f.entries(t)
	require.Len(t, entries, 2)
}

func TestService_Generate(t *testing.T) {
	f := newFixture(t, "SELECT MAX(height_cm) FROM default.people")

	draft, err := f.svc.Generate(context.Background(), "tallest")
	require.NoError(t, err)
	assert.Equal(t, "SELECT MAX(height_cm) FROM default.people", draft.Query.String())
	assert.Empty(t, f.entries(t), "generate alone is not recorded")
}

func TestService_Validate(t *testing.T) {
	f := newFixture(t, "")

	q, err := f.svc.Validate("SELECT age FROM default.people")
	require.NoError(t, err)
	assert.False(t, q.IsZero())

	_, err = f.svc.Validate("SELECT age FROM default.people; DROP TABLE x")
	var rej *grammar.Rejection
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "query does not match the allowed grammar", err.Error())
}

func TestService_Health(t *testing.T) {
	f := newFixture(t, "")
	f.mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	f.mock.ExpectQuery("SELECT COUNT(age) AS row_count FROM default.people").
		WillReturnRows(sqlmock.NewRows([]string{"row_count"}).AddRow(int64(13393)))

	h, err := f.svc.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.OK)
	assert.Equal(t, int64(13393), h.RowCount)
	assert.Equal(t, "default.people", h.Table)
}
