// Package schema declares the single dataset a sqlfence deployment exposes.
//
// A Schema names one database, one table, the ordered allowlist of queryable
// columns and the subset of those columns that may be aggregated with
// arithmetic functions. It is built once from configuration and is read-only
// afterwards; every accessor returns copies.
package schema

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// NumericLiteral selects the literal grammar used for numbers in comparisons.
type NumericLiteral string

const (
	// IntegerLiteral accepts unsigned integers only.
	IntegerLiteral NumericLiteral = "integer"
	// DecimalLiteral accepts an optional minus sign and an optional fraction.
	DecimalLiteral NumericLiteral = "decimal"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config is the raw declaration a Schema is built from.
type Config struct {
	Database       string         `koanf:"database" yaml:"database"`
	Table          string         `koanf:"table" yaml:"table"`
	Columns        []string       `koanf:"columns" yaml:"columns"`
	NumericColumns []string       `koanf:"numeric_columns" yaml:"numeric_columns"`
	NumericLiteral NumericLiteral `koanf:"numeric_literal" yaml:"numeric_literal"`
	Notes          []string       `koanf:"notes" yaml:"notes"`
}

// Schema is an immutable, validated dataset declaration.
type Schema struct {
	database string
	table    string
	columns  []string
	numeric  []string
	literal  NumericLiteral
	notes    []string
	isNum    map[string]bool
}

// New validates cfg and returns the Schema it describes.
func New(cfg Config) (*Schema, error) {
	if err := ValidIdentifier(cfg.Database); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := ValidIdentifier(cfg.Table); err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("at least one column is required")
	}

	seen := make(map[string]bool, len(cfg.Columns))
	for _, col := range cfg.Columns {
		if err := ValidIdentifier(col); err != nil {
			return nil, fmt.Errorf("column: %w", err)
		}
		if seen[col] {
			return nil, fmt.Errorf("column %q is declared more than once", col)
		}
		seen[col] = true
	}

	isNum := make(map[string]bool, len(cfg.NumericColumns))
	for _, col := range cfg.NumericColumns {
		if !seen[col] {
			return nil, fmt.Errorf("numeric column %q is not in the column list", col)
		}
		isNum[col] = true
	}

	literal := cfg.NumericLiteral
	switch literal {
	case "":
		literal = IntegerLiteral
	case IntegerLiteral, DecimalLiteral:
	default:
		return nil, fmt.Errorf("unknown numeric_literal %q (want %q or %q)", literal, IntegerLiteral, DecimalLiteral)
	}

	// Numeric columns keep declaration order of Columns, not of NumericColumns.
	numeric := make([]string, 0, len(isNum))
	for _, col := range cfg.Columns {
		if isNum[col] {
			numeric = append(numeric, col)
		}
	}

	return &Schema{
		database: cfg.Database,
		table:    cfg.Table,
		columns:  slices.Clone(cfg.Columns),
		numeric:  numeric,
		literal:  literal,
		notes:    slices.Clone(cfg.Notes),
		isNum:    isNum,
	}, nil
}

// MustNew is like New but panics on an invalid declaration.
// Intended for package-level fixtures and tests.
func MustNew(cfg Config) *Schema {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidIdentifier reports whether s is a bare SQL identifier:
// letters, digits and underscore, not starting with a digit.
func ValidIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("identifier is empty")
	}
	if !identifierRe.MatchString(s) {
		return fmt.Errorf("%q is not a valid identifier", s)
	}
	return nil
}

// Describe returns the four defining attributes of the schema.
func (s *Schema) Describe() (database, table string, columns, numericColumns []string) {
	return s.database, s.table, slices.Clone(s.columns), slices.Clone(s.numeric)
}

// Database returns the database identifier.
func (s *Schema) Database() string { return s.database }

// Table returns the table identifier.
func (s *Schema) Table() string { return s.table }

// Qualified returns "database.table".
func (s *Schema) Qualified() string { return s.database + "." + s.table }

// Columns returns the allowlisted columns in declaration order.
func (s *Schema) Columns() []string { return slices.Clone(s.columns) }

// NumericColumns returns the columns eligible for SUM, AVG, MIN and MAX.
func (s *Schema) NumericColumns() []string { return slices.Clone(s.numeric) }

// Categorical returns the columns that may only be counted.
func (s *Schema) Categorical() []string {
	out := make([]string, 0, len(s.columns)-len(s.numeric))
	for _, col := range s.columns {
		if !s.isNum[col] {
			out = append(out, col)
		}
	}
	return out
}

// IsNumeric reports whether col is a numeric column.
func (s *Schema) IsNumeric(col string) bool { return s.isNum[col] }

// HasColumn reports whether col is allowlisted.
func (s *Schema) HasColumn(col string) bool { return slices.Contains(s.columns, col) }

// NumericLiteral returns the literal grammar chosen for this schema.
func (s *Schema) NumericLiteral() NumericLiteral { return s.literal }

// Notes returns the free-text hints attached to the schema.
func (s *Schema) Notes() []string { return slices.Clone(s.notes) }

// String renders a short human summary, e.g. "default.people(age, gender)".
func (s *Schema) String() string {
	return fmt.Sprintf("%s(%s)", s.Qualified(), strings.Join(s.columns, ", "))
}
