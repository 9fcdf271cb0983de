// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/leapstack-labs/sqlfence/internal/cli/config"
	"github.com/stretchr/testify/require"

	// sqlite driver for test databases.
	_ "modernc.org/sqlite"
)

// PeopleSchema declares the people table created by CreatePeopleDB.
const PeopleSchema = `
schema:
  database: main
  table: people
  columns: [age, gender, height_cm, fitness_class]
  numeric_columns: [age, height_cm]
`

// SetupTestProject writes sqlfence.yaml into a fresh directory and makes it
// the working directory for the rest of the test. Loaded configuration is
// reset before and after the test.
func SetupTestProject(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(yaml), 0o600))
	t.Chdir(dir)
	t.Setenv("OPENAI_API_KEY", "")
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	return dir
}

// CreatePeopleDB creates a SQLite database at path with four people:
// two per gender, fitness classes A (2), B and C.
func CreatePeopleDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, "CREATE TABLE people (age INTEGER, gender TEXT, height_cm REAL, fitness_class TEXT)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO people VALUES
		(25, 'F', 165.0, 'A'),
		(31, 'M', 180.5, 'B'),
		(47, 'F', 158.2, 'C'),
		(52, 'M', 175.0, 'A')`)
	require.NoError(t, err)
}

// FakeModel serves Responses API calls that always answer with sql as the
// custom tool call input. It returns the server URL and a call counter.
func FakeModel(t *testing.T, sql string) (string, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "resp_test",
			"output": []map[string]any{
				{"type": "custom_tool_call", "name": "sql_query", "input": sql},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv.URL, &calls
}

// GeneratorConfig returns a generator config section pointing at baseURL.
func GeneratorConfig(baseURL string) string {
	return "generator:\n  api_key: sk-test\n  base_url: " + baseURL + "\n"
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
