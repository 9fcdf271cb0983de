package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/sqlfence/pkg/adapter"
	"github.com/leapstack-labs/sqlfence/pkg/schema"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/sqlfence/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/sqlfence/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/sqlfence/pkg/adapters/sqlite"
)

const sampleConfig = `
schema:
  database: default
  table: people
  columns: [age, gender, height_cm, fitness_class]
  numeric_columns: [age, height_cm]
target:
  type: duckdb
  path: data/people.duckdb
targets:
  pg:
    type: postgres
    host: db.internal
    port: 5432
    database: analytics
    username: reader
    password: ${SQLFENCE_TEST_PG_PASSWORD}
    options:
      sslmode: require
limits:
  max_rows: 200
  timeout: 5s
generator:
  api_key: ${SQLFENCE_TEST_API_KEY}
  model: gpt-test
server:
  port: 9000
  allowed_origins: [http://localhost:3000]
evals_path: evals/cases.yaml
`

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("sqlfence", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("target", "", "")
	fs.String("database", "", "")
	fs.String("state", "", "")
	fs.String("output", "", "")
	fs.String("log-level", "", "")
	fs.String("log-format", "", "")
	fs.BoolP("verbose", "v", false, "")
	return fs
}

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600))
	t.Chdir(dir)
	t.Cleanup(ResetConfig)
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Cleanup(ResetConfig)
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, schema.Default(), cfg.Schema)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, adapter.DefaultLimits(), cfg.Limits)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, []string{DefaultFrontendURL}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, DefaultStateFile), cfg.StatePath)
	assert.False(t, cfg.HasTarget())
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("SQLFENCE_TEST_API_KEY", "sk-from-env")
	dir := writeProject(t, sampleConfig)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "people", cfg.Schema.Table)
	assert.Equal(t, []string{"age", "height_cm"}, cfg.Schema.NumericColumns)
	require.True(t, cfg.HasTarget())
	assert.Equal(t, "duckdb", cfg.Target.Type)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "data", "people.duckdb"), cfg.Target.Path)
	assert.Equal(t, adapter.Limits{MaxRows: 200, Timeout: 5 * time.Second}, cfg.Limits)
	assert.Equal(t, "sk-from-env", cfg.Generator.APIKey)
	assert.Equal(t, "gpt-test", cfg.Generator.Model)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "evals", "cases.yaml"), cfg.EvalsPath)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	used, err := filepath.EvalSymlinks(GetConfigFileUsed())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(resolved, ConfigFileName), used)
}

func TestLoadConfig_UpwardSearch(t *testing.T) {
	dir := writeProject(t, sampleConfig)
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	t.Chdir(sub)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "people", cfg.Schema.Table)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "data", "people.duckdb"), cfg.Target.Path)
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))
	t.Cleanup(ResetConfig)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ProjectRoot)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadConfig_Precedence(t *testing.T) {
	writeProject(t, sampleConfig)
	t.Setenv("SQLFENCE_OUTPUT", "markdown")
	t.Setenv("SQLFENCE_LOG_LEVEL", "info")
	t.Setenv("SQLFENCE_LIMITS__MAX_ROWS", "25")
	t.Setenv("SQLFENCE_SERVER__PORT", "9100")

	flags := newFlags()
	require.NoError(t, flags.Parse([]string{"--output", "json", "--database", "other.db"}))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Output, "flag beats env")
	assert.Equal(t, "info", cfg.LogLevel, "env beats default")
	assert.Equal(t, 25, cfg.Limits.MaxRows, "env beats file")
	assert.Equal(t, 5*time.Second, cfg.Limits.Timeout)
	assert.Equal(t, 9100, cfg.Server.Port)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "other.db"), cfg.Target.Path)
	assert.Equal(t, "duckdb", cfg.Target.Type, "type stays from the file")
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := writeProject(t, sampleConfig)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SQLFENCE_TEST_API_KEY=sk-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SQLFENCE_TEST_API_KEY") })

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-dotenv", cfg.Generator.APIKey)
}

func TestLoadConfig_OpenAIFallback(t *testing.T) {
	writeProject(t, "output: text\n")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("OPENAI_MODEL", "gpt-fallback")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.Generator.APIKey)
	assert.Equal(t, "gpt-fallback", cfg.Generator.Model)
	assert.Equal(t, schema.Default(), cfg.Schema)
}

func TestLoadConfig_UnsetKeyReference(t *testing.T) {
	writeProject(t, "generator:\n  api_key: ${SQLFENCE_TEST_UNSET_KEY}\n")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Generator.APIKey)
}

func TestLoadConfigWithTarget(t *testing.T) {
	writeProject(t, sampleConfig)
	t.Setenv("SQLFENCE_TEST_PG_PASSWORD", "s3cret")

	cfg, err := LoadConfigWithTarget("", "pg", nil)
	require.NoError(t, err)
	assert.Equal(t, "pg", cfg.TargetName)
	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, "db.internal", cfg.Target.Host)
	assert.Equal(t, "s3cret", cfg.Target.Password)
	assert.Equal(t, map[string]string{"sslmode": "require"}, cfg.Target.Options)

	_, err = LoadConfigWithTarget("", "prod", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown target "prod" (available: pg)`)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{name: "unknown adapter", content: "target:\n  type: mysql\n", errSubstr: "unknown adapter type"},
		{name: "missing type", content: "target:\n  host: localhost\n", errSubstr: "target type is required"},
		{name: "bad output", content: "output: yaml\n", errSubstr: `invalid output "yaml"`},
		{name: "bad log level", content: "log_level: loud\n", errSubstr: "invalid log_level"},
		{name: "bad log format", content: "log_format: xml\n", errSubstr: "invalid log_format"},
		{name: "negative rows", content: "limits:\n  max_rows: -1\n", errSubstr: "max_rows"},
		{name: "bad port", content: "server:\n  port: 70000\n", errSubstr: "out of range"},
		{name: "malformed yaml", content: "schema: [\n", errSubstr: "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeProject(t, tt.content)
			_, err := LoadConfig("", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestValidateTarget_InfersType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "people.duckdb", want: "duckdb"},
		{path: "people.DDB", want: "duckdb"},
		{path: "people.db", want: "sqlite"},
		{path: "people.sqlite3", want: "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			target := &TargetConfig{Path: tt.path}
			require.NoError(t, ValidateTarget(target))
			assert.Equal(t, tt.want, target.Type)
		})
	}

	assert.NoError(t, ValidateTarget(&TargetConfig{}))
	assert.Error(t, ValidateTarget(&TargetConfig{Path: "people.csv"}))
}

func TestMergeTargetConfig(t *testing.T) {
	base := &TargetConfig{
		Type:    "postgres",
		Host:    "localhost",
		Port:    5432,
		Options: map[string]string{"sslmode": "disable", "application_name": "sqlfence"},
	}

	tests := []struct {
		name     string
		base     *TargetConfig
		override *TargetConfig
		want     *TargetConfig
	}{
		{name: "both nil"},
		{name: "nil override", base: base, want: base},
		{name: "nil base", override: &TargetConfig{Type: "sqlite"}, want: &TargetConfig{Type: "sqlite"}},
		{
			name:     "override wins",
			base:     base,
			override: &TargetConfig{Host: "db.internal", Options: map[string]string{"sslmode": "require"}},
			want: &TargetConfig{
				Type:    "postgres",
				Host:    "db.internal",
				Port:    5432,
				Options: map[string]string{"sslmode": "require", "application_name": "sqlfence"},
				Params:  map[string]any{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeTargetConfig(tt.base, tt.override))
		})
	}
	assert.Equal(t, "disable", base.Options["sslmode"], "base must not be mutated")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SQLFENCE_TEST_HOST", "db.example.com")

	assert.Equal(t, "db.example.com:5432", expandEnvVars("${SQLFENCE_TEST_HOST}:5432"))
	assert.Equal(t, "${SQLFENCE_TEST_UNSET}", expandEnvVars("${SQLFENCE_TEST_UNSET}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}

func TestGetLogger_Fallback(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))
}
