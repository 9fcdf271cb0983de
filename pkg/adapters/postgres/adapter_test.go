package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/leapstack-labs/sqlfence/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass default_transaction_read_only=on",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin default_transaction_read_only=on",
		},
		{
			name: "defaults",
			config: adapter.Config{
				Database: "mydb",
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable default_transaction_read_only=on",
		},
		{
			name: "quoted password",
			config: adapter.Config{
				Database: "mydb",
				Password: `it's a secret`,
			},
			expected: `host=localhost port=5432 dbname=mydb sslmode=disable password='it\'s a secret' default_transaction_read_only=on`,
		},
		{
			name: "runtime options sorted and read-only cannot be overridden",
			config: adapter.Config{
				Database: "mydb",
				Options: map[string]string{
					"statement_timeout":             "20000",
					"application_name":              "sqlfence",
					"default_transaction_read_only": "off",
				},
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable application_name=sqlfence statement_timeout=20000 default_transaction_read_only=on",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn := buildPostgresDSN(tt.config)
			assert.Equal(t, tt.expected, dsn)

			cfg, err := pgx.ParseConfig(dsn)
			require.NoError(t, err)
			assert.Equal(t, "on", cfg.RuntimeParams["default_transaction_read_only"])
		})
	}
}

func TestDSNValue(t *testing.T) {
	assert.Equal(t, "plain", dsnValue("plain"))
	assert.Equal(t, "''", dsnValue(""))
	assert.Equal(t, `'a b'`, dsnValue("a b"))
	assert.Equal(t, `'a\\b'`, dsnValue(`a\b`))
}

func TestNew(t *testing.T) {
	adp := New(nil)

	assert.NotNil(t, adp)
	assert.Nil(t, adp.DB, "DB should be nil before Connect")
	assert.False(t, adp.IsConnected())
	assert.Equal(t, "postgres", adp.DialectName())
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	assert.ErrorIs(t, adp.Ping(ctx), adapter.ErrNotConnected)
	assert.NoError(t, adp.Close())
}

func TestAdapter_Registry(t *testing.T) {
	reg, ok := adapter.Lookup("postgres")
	require.True(t, ok, "should be able to get postgres factory")

	pg, ok := reg.New(nil).(*Adapter)
	require.True(t, ok, "factory should return *Adapter")
	assert.Equal(t, "postgres", pg.DialectName())
}
