// Package token defines terminal symbols for generated grammars.
//
// Unlike a fixed SQL keyword set, the terminals of a sqlfence grammar depend
// on the declared schema: every allowlisted column becomes its own terminal.
// A Table holds the ordered terminal set of one grammar. Type 0 is always EOF.
package token

import "fmt"

// Kind distinguishes how a terminal matches input.
type Kind uint8

const (
	// Literal terminals match their text exactly (case-sensitive).
	Literal Kind = iota
	// Pattern terminals match a regular expression.
	Pattern
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Pattern:
		return "pattern"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Terminal is one lexical symbol of a grammar.
type Terminal struct {
	Name string // upper-case terminal name, e.g. SELECT or HEIGHT_CM
	Kind Kind
	Text string // literal text or pattern source

	// Ignored terminals are skipped between tokens and never reach the parser.
	Ignored bool

	// Reserved words a pattern terminal never matches, compared
	// case-insensitively against the whole match.
	Reserved []string
}

// Type identifies a terminal within a Table.
//
//nolint:revive // token.Type reads naturally at call sites
type Type int32

// EOF marks the end of input in every Table.
const EOF Type = 0

// EOFName is the name reported for EOF.
const EOFName = "$END"

// Token is a lexical token with position information.
type Token struct {
	Type    Type
	Literal string
	Pos     Position
}
