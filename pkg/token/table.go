package token

import (
	"fmt"
	"regexp"
	"strings"
)

// Table is an ordered, immutable set of terminals.
// The terminal at index i of NewTable's argument has Type i+1.
type Table struct {
	terms    []Terminal // index 0 is EOF
	byName   map[string]Type
	patterns []*regexp.Regexp
	reserved []map[string]bool
	ignored  []Type
}

// NewTable builds a Table. Terminal names must be unique, literal texts must be
// non-empty, and patterns must compile and never match the empty string.
//
// Two literals may share a text. Which one a word lexes as is decided by the
// parser state, see lalr.Build.
func NewTable(terms []Terminal) (*Table, error) {
	t := &Table{
		terms:    make([]Terminal, 0, len(terms)+1),
		byName:   make(map[string]Type, len(terms)+1),
		patterns: make([]*regexp.Regexp, len(terms)+1),
		reserved: make([]map[string]bool, len(terms)+1),
	}
	t.terms = append(t.terms, Terminal{Name: EOFName})
	t.byName[EOFName] = EOF

	for _, term := range terms {
		if term.Name == "" {
			return nil, fmt.Errorf("terminal with text %q has no name", term.Text)
		}
		if _, dup := t.byName[term.Name]; dup {
			return nil, fmt.Errorf("terminal %s is defined more than once", term.Name)
		}
		typ := Type(len(t.terms))

		switch term.Kind {
		case Literal:
			if term.Text == "" {
				return nil, fmt.Errorf("terminal %s has empty text", term.Name)
			}
			if len(term.Reserved) > 0 {
				return nil, fmt.Errorf("terminal %s: reserved words apply to patterns only", term.Name)
			}
		case Pattern:
			re, err := regexp.Compile(`\A(?:` + term.Text + `)`)
			if err != nil {
				return nil, fmt.Errorf("terminal %s: invalid pattern: %w", term.Name, err)
			}
			re.Longest()
			if re.MatchString("") {
				return nil, fmt.Errorf("terminal %s: pattern matches the empty string", term.Name)
			}
			t.patterns[typ] = re
			if len(term.Reserved) > 0 {
				words := make(map[string]bool, len(term.Reserved))
				for _, w := range term.Reserved {
					words[strings.ToUpper(w)] = true
				}
				t.reserved[typ] = words
			}
		default:
			return nil, fmt.Errorf("terminal %s: unknown kind %v", term.Name, term.Kind)
		}

		t.terms = append(t.terms, term)
		t.byName[term.Name] = typ
		if term.Ignored {
			t.ignored = append(t.ignored, typ)
		}
	}
	return t, nil
}

// Len returns the number of terminal types including EOF.
func (t *Table) Len() int { return len(t.terms) }

// Lookup returns the type of the named terminal.
func (t *Table) Lookup(name string) (Type, bool) {
	typ, ok := t.byName[name]
	return typ, ok
}

// Terminal returns the definition of typ.
func (t *Table) Terminal(typ Type) Terminal { return t.terms[typ] }

// Name returns the name of typ.
func (t *Table) Name(typ Type) string {
	if int(typ) < 0 || int(typ) >= len(t.terms) {
		return fmt.Sprintf("TOKEN(%d)", typ)
	}
	return t.terms[typ].Name
}

// Terminals returns the definitions in declaration order, without EOF.
func (t *Table) Terminals() []Terminal {
	out := make([]Terminal, len(t.terms)-1)
	copy(out, t.terms[1:])
	return out
}

// Ignored returns the types skipped between tokens.
func (t *Table) Ignored() []Type { return t.ignored }

// Match returns the length of the longest prefix of input matched by typ,
// or -1 when typ does not match. A pattern never matches one of its reserved
// words. A literal ending in a word character does not
// match when it is immediately followed by another word character, so the
// column "age" never matches the start of "ages".
func (t *Table) Match(typ Type, input string) int {
	if typ == EOF {
		return -1
	}
	term := t.terms[typ]
	if term.Kind == Literal {
		if !strings.HasPrefix(input, term.Text) {
			return -1
		}
		n := len(term.Text)
		if isWordByte(term.Text[n-1]) && n < len(input) && isWordByte(input[n]) {
			return -1
		}
		return n
	}
	loc := t.patterns[typ].FindStringIndex(input)
	if loc == nil || loc[1] == 0 {
		return -1
	}
	if t.reserved[typ][strings.ToUpper(input[:loc[1]])] {
		return -1
	}
	return loc[1]
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
