package lalr

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/sqlfence/pkg/token"
)

// maxExcerpt bounds how much offending input a SyntaxError quotes.
const maxExcerpt = 24

// SyntaxError describes where and why input was rejected.
type SyntaxError struct {
	Pos      token.Position
	Found    string   // offending input excerpt, empty at end of input
	Expected []string // terminal names that would have been accepted
}

func (e *SyntaxError) Error() string {
	found := "end of input"
	if e.Found != "" {
		found = fmt.Sprintf("%q", e.Found)
	}
	return fmt.Sprintf("syntax error at %s: unexpected %s, expected one of: %s",
		e.Pos, found, strings.Join(e.Expected, ", "))
}

// Parse reports whether input is a sentence of the grammar. It returns nil
// when the whole input reduces to the start symbol and a *SyntaxError otherwise.
func (t *Table) Parse(input string) error {
	sc := scanner{terms: t.terms, input: input, line: 1, col: 1}
	stack := make([]int32, 1, 32)

	var la token.Token
	have := false
	for {
		s := stack[len(stack)-1]
		if !have {
			tok, err := sc.next(t, s)
			if err != nil {
				return err
			}
			la, have = tok, true
		}

		act := t.action[s][la.Type]
		switch act.kind {
		case actShift:
			stack = append(stack, act.arg)
			have = false
		case actReduce:
			p := t.prods[act.arg]
			stack = stack[:len(stack)-len(p.body)]
			top := stack[len(stack)-1]
			g := t.gotos[top][p.head-t.syms.nterm]
			if g < 0 {
				return fmt.Errorf("lalr: missing goto from state %d on %s", top, t.syms.names[p.head])
			}
			stack = append(stack, g)
		case actAccept:
			return nil
		default:
			return &SyntaxError{Pos: la.Pos, Found: excerpt(la.Literal), Expected: t.expected(s)}
		}
	}
}

// expected lists the terminals with an action in state s.
func (t *Table) expected(s int32) []string {
	var out []string
	for typ, a := range t.action[s] {
		if a.kind != actError {
			out = append(out, t.syms.names[typ])
		}
	}
	return out
}

// scanner is a contextual lexer: it only tries terminals the current state accepts.
type scanner struct {
	terms *token.Table
	input string
	pos   int
	line  int
	col   int
}

func (sc *scanner) next(t *Table, state int32) (token.Token, error) {
	sc.skipIgnored()
	pos := token.Position{Line: sc.line, Column: sc.col, Offset: sc.pos}
	if sc.pos >= len(sc.input) {
		return token.Token{Type: token.EOF, Pos: pos}, nil
	}

	rest := sc.input[sc.pos:]
	row := t.action[state]
	best, bestLen, bestLiteral := token.EOF, 0, false
	for typ := 1; typ < len(row); typ++ {
		if row[typ].kind == actError {
			continue
		}
		n := sc.terms.Match(token.Type(typ), rest)
		if n <= 0 {
			continue
		}
		literal := sc.terms.Terminal(token.Type(typ)).Kind == token.Literal
		// Longest match wins; on a tie an exact literal beats a pattern.
		if n > bestLen || (n == bestLen && literal && !bestLiteral) {
			best, bestLen, bestLiteral = token.Type(typ), n, literal
		}
	}
	if best == token.EOF {
		return token.Token{}, &SyntaxError{Pos: pos, Found: excerpt(rest), Expected: t.expected(state)}
	}

	tok := token.Token{Type: best, Literal: rest[:bestLen], Pos: pos}
	sc.advance(bestLen)
	return tok, nil
}

func (sc *scanner) skipIgnored() {
	for progressed := true; progressed && sc.pos < len(sc.input); {
		progressed = false
		for _, typ := range sc.terms.Ignored() {
			if n := sc.terms.Match(typ, sc.input[sc.pos:]); n > 0 {
				sc.advance(n)
				progressed = true
			}
		}
	}
}

func (sc *scanner) advance(n int) {
	for _, c := range []byte(sc.input[sc.pos : sc.pos+n]) {
		if c == '\n' {
			sc.line++
			sc.col = 1
		} else {
			sc.col++
		}
	}
	sc.pos += n
}

func excerpt(s string) string {
	if end := strings.IndexAny(s, " \t\r\n"); end > 0 {
		s = s[:end]
	}
	if utf8.RuneCountInString(s) <= maxExcerpt {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxExcerpt]) + "..."
}
