package commands

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlfence/internal/cli/config"
	"github.com/leapstack-labs/sqlfence/internal/cli/output"
	"github.com/spf13/cobra"

	// sqlite driver for seeding the example database.
	_ "modernc.org/sqlite"
)

// Example project layout.
const (
	exampleDatabase = "people.db"
	exampleSeedDir  = "seeds"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new sqlfence project",
		Long: `Initialize a new sqlfence project with a commented sqlfence.yaml.

Use --example to create a working demo: the body performance dataset is
loaded from seeds/ into a local SQLite database and the config points at it.`,
		Example: `  # Initialize in current directory
  sqlfence init

  # Initialize a demo project in a new directory
  sqlfence init demo --example

  # Force overwrite existing config
  sqlfence init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			// init runs before any project exists, so it never loads config.
			mode := output.ModeAuto
			if f := cmd.Flags().Lookup("output"); f != nil {
				mode = output.Mode(f.Value.String())
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			template := "minimal"
			if example {
				template = "example"
			}
			return runInit(cmd.Context(), r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create an example project with a seeded SQLite database")

	return cmd
}

func runInit(ctx context.Context, r *output.Renderer, dir, template string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	if err := copyTemplate(template, dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, _ := listTemplateFiles(template)
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}

	if template == "example" {
		dbPath := filepath.Join(dir, exampleDatabase)
		if force {
			_ = os.Remove(dbPath)
		}
		n, err := seedSQLite(ctx, dbPath, filepath.Join(dir, exampleSeedDir))
		if err != nil {
			return fmt.Errorf("failed to seed example database: %w", err)
		}
		r.StatusLine(exampleDatabase, "success", fmt.Sprintf("%d rows", n))
	}

	r.Println("")
	r.Success("sqlfence project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  sqlfence doctor    Check configuration, database and generator")
	r.Println("  sqlfence grammar   Print the grammar generated SQL must follow")
	r.Println("  sqlfence query     Ask a question (needs OPENAI_API_KEY)")

	return nil
}

// seedSQLite loads every CSV file in seedDir into a table named after the
// file. Columns whose values all parse as numbers are stored as REAL.
func seedSQLite(ctx context.Context, dbPath, seedDir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(seedDir, "*.csv"))
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, errors.New("no seed files found")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()

	total := 0
	for _, path := range matches {
		table := strings.TrimSuffix(filepath.Base(path), ".csv")
		n, err := seedTable(ctx, db, table, path)
		if err != nil {
			return total, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		total += n
	}
	return total, nil
}

func seedTable(ctx context.Context, db *sql.DB, table, path string) (int, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the embedded template
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, err
	}
	if len(records) < 2 {
		return 0, errors.New("seed file has no rows")
	}
	header, rows := records[0], records[1:]

	defs := make([]string, len(header))
	for i, col := range header {
		kind := "REAL"
		for _, row := range rows {
			if _, err := strconv.ParseFloat(row[i], 64); err != nil {
				kind = "TEXT"
				break
			}
		}
		defs[i] = fmt.Sprintf("%q %s", col, kind)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %q (%s)", table, strings.Join(defs, ", "))); err != nil {
		return 0, err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(header)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %q VALUES (%s)", table, placeholders))
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, err
		}
	}
	return len(rows), tx.Commit()
}
