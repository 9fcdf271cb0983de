package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAdapter struct {
	BaseSQLAdapter
}

func (m *mockAdapter) Connect(context.Context, Config) error { return nil }

func (m *mockAdapter) DialectName() string { return "mock" }

func TestCountQuery(t *testing.T) {
	q, err := CountQuery(testGrammar(t))
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(age) AS row_count FROM default.people", q.String())
}

func TestCheckHealth(t *testing.T) {
	c := testGrammar(t)

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantOK    bool
		wantCount int64
		errSubstr string
	}{
		{
			name: "healthy",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
				mock.ExpectQuery("SELECT COUNT(age) AS row_count FROM default.people").
					WillReturnRows(sqlmock.NewRows([]string{"row_count"}).AddRow(int64(13393)))
			},
			wantOK:    true,
			wantCount: 13393,
		},
		{
			name: "count as string",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
				mock.ExpectQuery("SELECT COUNT(age) AS row_count FROM default.people").
					WillReturnRows(sqlmock.NewRows([]string{"row_count"}).AddRow([]byte("7")))
			},
			wantOK:    true,
			wantCount: 7,
		},
		{
			name: "ping fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT 1").WillReturnError(assert.AnError)
			},
			errSubstr: "failed to ping database",
		},
		{
			name: "table missing",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
				mock.ExpectQuery("SELECT COUNT(age) AS row_count FROM default.people").
					WillReturnError(assert.AnError)
			},
			errSubstr: "failed to execute query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := newMockBase(t)
			tt.setupMock(mock)

			h := CheckHealth(context.Background(), &mockAdapter{BaseSQLAdapter: *base}, c, DefaultLimits())
			assert.Equal(t, tt.wantOK, h.OK)
			assert.Equal(t, "mock", h.Dialect)
			assert.Equal(t, "default.people", h.Table)
			assert.Equal(t, tt.wantCount, h.RowCount)
			if tt.errSubstr != "" {
				assert.Contains(t, h.Error, tt.errSubstr)
			} else {
				assert.Empty(t, h.Error)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
