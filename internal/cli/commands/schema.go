package commands

import (
	"strings"

	"github.com/leapstack-labs/sqlfence/internal/cli/output"
	"github.com/spf13/cobra"
)

// schemaOutput is the JSON form of the schema command.
type schemaOutput struct {
	Database       string   `json:"database"`
	Table          string   `json:"table"`
	Columns        []string `json:"columns"`
	NumericColumns []string `json:"numeric_columns"`
	NumericLiteral string   `json:"numeric_literal"`
	Notes          []string `json:"notes,omitempty"`
	Fingerprint    string   `json:"fingerprint"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show the queryable dataset",
		Long:  `Show the table, columns and numeric columns queries may reference.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchema(cmd)
		},
	}
}

func runSchema(cmd *cobra.Command) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	compiled, err := cc.Compile()
	if err != nil {
		return err
	}
	s := compiled.Schema()
	r := cc.Renderer

	out := schemaOutput{
		Database:       s.Database(),
		Table:          s.Table(),
		Columns:        s.Columns(),
		NumericColumns: s.NumericColumns(),
		NumericLiteral: string(s.NumericLiteral()),
		Notes:          s.Notes(),
		Fingerprint:    compiled.Fingerprint(),
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Schema: "+s.Qualified()))
		r.Println("")
		r.Println(output.FormatKeyValue("Columns", strings.Join(out.Columns, ", ")))
		r.Println(output.FormatKeyValue("Numeric", strings.Join(out.NumericColumns, ", ")))
		r.Println(output.FormatKeyValue("Numeric literal", out.NumericLiteral))
		r.Println(output.FormatKeyValue("Fingerprint", out.Fingerprint))
		for _, note := range out.Notes {
			r.Println(output.FormatKeyValue("Note", note))
		}
	default:
		styles := r.Styles()
		r.Header(1, s.Qualified())
		rows := make([]map[string]any, 0, len(out.Columns))
		for _, col := range out.Columns {
			kind := "categorical"
			if s.IsNumeric(col) {
				kind = "numeric"
			}
			rows = append(rows, map[string]any{"column": col, "kind": kind})
		}
		if err := r.Table([]string{"column", "kind"}, rows); err != nil {
			return err
		}
		r.Println(styles.Muted.Render("numeric literal: " + out.NumericLiteral))
		for _, note := range out.Notes {
			r.Println(styles.Muted.Render("note: " + note))
		}
	}
	return nil
}
