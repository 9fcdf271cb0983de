package adapter

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownAdapterError_Error(t *testing.T) {
	err := &UnknownAdapterError{
		Type:      "fake_db",
		Available: []string{"duckdb", "postgres"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "fake_db")
	assert.Contains(t, msg, "duckdb")
	assert.Contains(t, msg, "sqlfence.yaml", "error should point at the config file")
}

func TestRegister(t *testing.T) {
	Register(Registration{
		Name:       "Test_Adapter_Internal",
		Extensions: []string{".TAI"},
		New:        func(_ *slog.Logger) Adapter { return &mockAdapter{} },
	})

	assert.True(t, IsRegistered("test_adapter_internal"))
	assert.True(t, IsRegistered("TEST_ADAPTER_INTERNAL"))
	assert.Contains(t, ListAdapters(), "test_adapter_internal")

	r, ok := Lookup("test_adapter_internal")
	require.True(t, ok)
	assert.Equal(t, "test_adapter_internal", r.Name)
	assert.Equal(t, "mock", r.New(nil).DialectName())

	assert.Equal(t, "test_adapter_internal", TypeForPath("data/file.tai"))
	assert.Equal(t, "test_adapter_internal", TypeForPath("FILE.TAI"))
	assert.Empty(t, TypeForPath("file.unclaimed"))
	assert.Empty(t, TypeForPath("noext"))
}

func TestRegister_Panics(t *testing.T) {
	factory := func(_ *slog.Logger) Adapter { return &mockAdapter{} }
	Register(Registration{Name: "test_register_panics", Extensions: []string{".trp"}, New: factory})

	tests := []struct {
		name string
		reg  Registration
	}{
		{"empty name", Registration{New: factory}},
		{"nil factory", Registration{Name: "test_no_factory"}},
		{"duplicate name", Registration{Name: "test_register_panics", New: factory}},
		{"duplicate name other case", Registration{Name: "TEST_REGISTER_PANICS", New: factory}},
		{"extension already claimed", Registration{Name: "test_ext_thief", Extensions: []string{".TRP"}, New: factory}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { Register(tt.reg) })
		})
	}

	assert.False(t, IsRegistered("test_ext_thief"), "a rejected registration must leave no trace")
	assert.Equal(t, "test_register_panics", TypeForPath("x.trp"))
}

func TestNewAdapter_EmptyType(t *testing.T) {
	_, err := NewAdapter(Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "adapter type not specified", err.Error())
}

func TestOpen(t *testing.T) {
	Register(Registration{
		Name: "test_open",
		New: func(l *slog.Logger) Adapter {
			return &mockAdapter{BaseSQLAdapter{Logger: l}}
		},
	})

	a, err := Open(context.Background(), Config{Type: "test_open"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", a.DialectName())

	_, err = Open(context.Background(), Config{Type: "nope"}, nil)
	var unknown *UnknownAdapterError
	assert.ErrorAs(t, err, &unknown)
}

func TestOpenTarget(t *testing.T) {
	Register(Registration{
		Name: "test_open_target",
		New:  func(_ *slog.Logger) Adapter { return &mockAdapter{} },
	})
	c := testGrammar(t)

	target, err := OpenTarget(context.Background(), Config{Type: "test_open_target"}, c, Limits{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimits(), target.Limits(), "zero limits fall back to the defaults")
	assert.Equal(t, "mock", target.DialectName())

	custom := Limits{MaxRows: 5, Timeout: time.Second}
	target, err = OpenTarget(context.Background(), Config{Type: "test_open_target"}, c, custom, nil)
	require.NoError(t, err)
	assert.Equal(t, custom, target.Limits())

	_, err = OpenTarget(context.Background(), Config{Type: "test_open_target"}, nil, custom, nil)
	assert.ErrorContains(t, err, "no compiled grammar")

	_, err = OpenTarget(context.Background(), Config{Type: "nope"}, c, custom, nil)
	var unknown *UnknownAdapterError
	assert.ErrorAs(t, err, &unknown)
}

func TestTarget_Run(t *testing.T) {
	c := testGrammar(t)
	const sql = "SELECT gender, COUNT(age) AS n FROM default.people GROUP BY gender"
	q := mustQuery(t, c, sql)

	tests := []struct {
		name      string
		maxRows   int
		wantRows  int
		wantLimit bool
	}{
		{name: "within bound limit", maxRows: 3, wantRows: 2},
		{name: "bound limit exceeded", maxRows: 1, wantLimit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := newMockBase(t)
			mock.ExpectQuery(sql).
				WillReturnRows(sqlmock.NewRows([]string{"gender", "n"}).AddRow("F", 2).AddRow("M", 2))

			target := NewTarget(&mockAdapter{BaseSQLAdapter: *base}, c, Limits{MaxRows: tt.maxRows})
			res, err := target.Run(context.Background(), q)
			if tt.wantLimit {
				assert.ErrorIs(t, err, ErrRowLimitExceeded)
				return
			}
			require.NoError(t, err)
			assert.Len(t, res.Rows, tt.wantRows)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTarget_Health(t *testing.T) {
	base, mock := newMockBase(t)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT(age) AS row_count FROM default.people").
		WillReturnRows(sqlmock.NewRows([]string{"row_count"}).AddRow(int64(4)))

	target := NewTarget(&mockAdapter{BaseSQLAdapter: *base}, testGrammar(t), Limits{})
	h := target.Health(context.Background())
	assert.True(t, h.OK, h.Error)
	assert.Equal(t, "default.people", h.Table)
	assert.Equal(t, int64(4), h.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
