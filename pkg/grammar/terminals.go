package grammar

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/sqlfence/pkg/schema"
	"github.com/leapstack-labs/sqlfence/pkg/token"
)

// Fixed terminal names.
const (
	termDatabase     = "DATABASE_ID"
	termTable        = "TABLE_ID"
	termIdentifier   = "IDENTIFIER"
	termInt          = "INT"
	termSignedNumber = "SIGNED_NUMBER"
	termQuoted       = "SINGLE_QUOTED"
	termWS           = "WS"
)

// keywords are matched case-sensitively in upper case.
var keywords = []string{
	"SELECT", "FROM", "WHERE", "GROUP", "BY", "ORDER", "LIMIT",
	"AS", "IN", "AND", "ASC", "DESC",
}

// aggregates in rendering order. COUNT is the only one allowed on every column.
var aggregates = []string{"SUM", "COUNT", "AVG", "MIN", "MAX"}

var numericAggregates = []string{"SUM", "AVG", "MIN", "MAX"}

// punctuation terminals are rendered inline as quoted strings.
var punctuation = []token.Terminal{
	{Name: "LPAR", Kind: token.Literal, Text: "("},
	{Name: "RPAR", Kind: token.Literal, Text: ")"},
	{Name: "COMMA", Kind: token.Literal, Text: ","},
	{Name: "DOT", Kind: token.Literal, Text: "."},
	{Name: "EQ", Kind: token.Literal, Text: "="},
	{Name: "GE", Kind: token.Literal, Text: ">="},
	{Name: "LE", Kind: token.Literal, Text: "<="},
	{Name: "GT", Kind: token.Literal, Text: ">"},
	{Name: "LT", Kind: token.Literal, Text: "<"},
}

var patterns = map[string]string{
	termIdentifier:   `[A-Za-z_][A-Za-z0-9_]*`,
	termInt:          `[0-9]+`,
	termSignedNumber: `-?[0-9]+(\.[0-9]+)?`,
	termQuoted:       `'[^']*'`,
	termWS:           `[ \t\r\n]+`,
}

// ColumnToken returns the terminal name generated for a column.
func ColumnToken(column string) string {
	return strings.ToUpper(column)
}

// numberTerminal returns the terminal used by number_literal.
func numberTerminal(s *schema.Schema) string {
	if s.NumericLiteral() == schema.DecimalLiteral {
		return termSignedNumber
	}
	return termInt
}

func reservedWords() []string {
	return append(slices.Clone(keywords), aggregates...)
}

// terminalSet builds the terminals of the grammar for s in rendering order.
// It fails when two terminals share a name or a column spells a fixed token.
func terminalSet(s *schema.Schema) ([]token.Terminal, error) {
	var terms []token.Terminal
	lit := func(name, text string) {
		terms = append(terms, token.Terminal{Name: name, Kind: token.Literal, Text: text})
	}
	for _, kw := range keywords {
		lit(kw, kw)
	}
	for _, agg := range aggregates {
		lit(agg, agg)
	}
	terms = append(terms, punctuation...)
	lit(termDatabase, s.Database())
	lit(termTable, s.Table())
	for _, col := range s.Columns() {
		lit(ColumnToken(col), col)
	}

	pat := func(name string, ignored bool) {
		terms = append(terms, token.Terminal{Name: name, Kind: token.Pattern, Text: patterns[name], Ignored: ignored})
	}
	// Aliases and ORDER BY names never spell a keyword or aggregate.
	terms = append(terms, token.Terminal{
		Name:     termIdentifier,
		Kind:     token.Pattern,
		Text:     patterns[termIdentifier],
		Reserved: reservedWords(),
	})
	pat(termInt, false)
	if numberTerminal(s) == termSignedNumber {
		pat(termSignedNumber, false)
	}
	pat(termQuoted, false)
	pat(termWS, true)

	if err := checkCollisions(terms); err != nil {
		return nil, err
	}
	return terms, nil
}

// checkCollisions enforces that terminal names are injective and that no
// column spells a keyword, aggregate or punctuation token. The database and
// table names may repeat each other or a column: they are only ever lexed
// after FROM and the dot, where nothing else is acceptable.
func checkCollisions(terms []token.Terminal) error {
	names := make(map[string]token.Terminal, len(terms))
	fixed := make(map[string]token.Terminal, len(terms))
	for _, t := range terms {
		if prev, ok := names[t.Name]; ok {
			return fmt.Errorf("token %s is produced by both %s and %s", t.Name, describeTerminal(prev), describeTerminal(t))
		}
		names[t.Name] = t
		if isFixed(t.Name) {
			fixed[strings.ToUpper(t.Text)] = t
		}
	}
	for _, t := range terms {
		if t.Kind != token.Literal || isFixed(t.Name) || t.Name == termDatabase || t.Name == termTable {
			continue
		}
		if prev, ok := fixed[strings.ToUpper(t.Text)]; ok {
			return fmt.Errorf("column %q spells the %s token", t.Text, prev.Name)
		}
	}
	return nil
}

func isFixed(name string) bool {
	return slices.Contains(keywords, name) || slices.Contains(aggregates, name) || isPunctuation(name)
}

func describeTerminal(t token.Terminal) string {
	if t.Kind == token.Pattern {
		return fmt.Sprintf("pattern %s", t.Name)
	}
	return fmt.Sprintf("%q", t.Text)
}

func isPunctuation(name string) bool {
	for _, p := range punctuation {
		if p.Name == name {
			return true
		}
	}
	return false
}
