package grammar

import "strings"

// Query is candidate text that passed Validate. The zero value is not a
// valid query; only Validate constructs non-zero values, so an API taking a
// Query cannot be handed unvalidated text.
type Query struct {
	text string
}

// String returns the validated text exactly as it was submitted.
func (q Query) String() string { return q.text }

// IsZero reports whether q was not produced by Validate.
func (q Query) IsZero() bool { return q.text == "" }

// Validate accepts text if it is a single query of the compiled grammar.
// Accepted text is returned unchanged inside the Query; it is never trimmed
// or rewritten. Every rejection is a *Rejection wrapping ErrEmptyQuery or
// ErrGrammarMismatch.
func (c *Compiled) Validate(text string) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return Query{}, &Rejection{Reason: ErrEmptyQuery}
	}
	if err := c.parser.Parse(text); err != nil {
		return Query{}, &Rejection{Reason: ErrGrammarMismatch, Detail: err}
	}
	return Query{text: text}, nil
}
