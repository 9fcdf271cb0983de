// Package lalr builds LALR(1) parse tables from a context-free grammar and
// runs a deterministic shift-reduce parser over them.
//
// # Usage
//
//	tbl, err := lalr.Build(terms, lalr.Grammar{Start: "start", Productions: prods})
//	if err != nil {
//	    // grammar is not LALR(1) or references unknown symbols
//	}
//	err = tbl.Parse("SELECT age FROM default.people")
//
// Terminals come from a token.Table; nonterminals are the heads of the
// productions. Lexing is contextual: at every step only terminals that have an
// action in the current parser state are tried, so a word can be a column
// token in one position and an IDENTIFIER in another.
//
// A Table is immutable once Build returns and Parse keeps all state on the
// call stack, so one Table may be shared by any number of goroutines.
package lalr

import (
	"fmt"
	"strings"
)

// Production is one BNF alternative: Head -> Body. An empty Body derives ε.
type Production struct {
	Head string
	Body []string
}

// String renders the production as "head -> a b c".
func (p Production) String() string {
	if len(p.Body) == 0 {
		return p.Head + " -> ε"
	}
	return p.Head + " -> " + strings.Join(p.Body, " ")
}

// Grammar is a start symbol plus its BNF productions.
type Grammar struct {
	Start       string
	Productions []Production
}

// augmentedStart names the synthetic production S' -> Start.
const augmentedStart = "$start"

// symbols maps grammar symbols to dense indexes: terminals occupy
// [0, nterm) with EOF at 0, nonterminals follow.
type symbols struct {
	nterm    int
	names    []string
	nonterms map[string]int
}

func (s *symbols) isTerminal(sym int) bool { return sym < s.nterm }

// prod is a resolved production.
type prod struct {
	head int
	body []int
}

func (s *symbols) describe(p prod, dot int) string {
	var b strings.Builder
	b.WriteString(s.names[p.head])
	b.WriteString(" ->")
	for i, sym := range p.body {
		if i == dot {
			b.WriteString(" .")
		}
		b.WriteString(" ")
		b.WriteString(s.names[sym])
	}
	if dot == len(p.body) {
		b.WriteString(" .")
	}
	return b.String()
}

func resolveErr(format string, args ...any) error {
	return fmt.Errorf("lalr: "+format, args...)
}
