package grammar

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlfence/pkg/token"
)

// larkRenderer writes a rule table in Lark grammar syntax.
type larkRenderer struct {
	terms map[string]token.Terminal
}

func renderLark(rules []Rule, terms []token.Terminal) string {
	r := larkRenderer{terms: make(map[string]token.Terminal, len(terms))}
	for _, t := range terms {
		r.terms[t.Name] = t
	}

	blocks := make([]string, 0, len(rules)+2)
	for _, rule := range rules {
		blocks = append(blocks, r.rule(rule))
	}

	var defs, ignores []string
	for _, t := range terms {
		if isPunctuation(t.Name) {
			continue
		}
		defs = append(defs, t.Name+": "+larkTerminal(t))
		if t.Ignored {
			ignores = append(ignores, "%ignore "+t.Name)
		}
	}
	blocks = append(blocks, strings.Join(defs, "\n"))
	if len(ignores) > 0 {
		blocks = append(blocks, strings.Join(ignores, "\n"))
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// rule renders one rule, aligning alternatives under the colon:
//
//	select_item: agg_expr
//	           | column
func (r larkRenderer) rule(rule Rule) string {
	var b strings.Builder
	b.WriteString(rule.Name)
	b.WriteString(": ")
	indent := strings.Repeat(" ", len(rule.Name))
	for i, alt := range rule.Alternatives() {
		if i > 0 {
			b.WriteString("\n")
			b.WriteString(indent)
			b.WriteString("| ")
		}
		b.WriteString(r.expr(alt))
	}
	return b.String()
}

func (r larkRenderer) expr(e Expr) string {
	switch e.Op {
	case OpSym:
		if t, ok := r.terms[e.Name]; ok && isPunctuation(e.Name) {
			return strconv.Quote(t.Text)
		}
		return e.Name
	case OpSeq:
		parts := make([]string, len(e.Items))
		for i, it := range e.Items {
			parts[i] = r.expr(it)
		}
		return strings.Join(parts, " ")
	case OpAlt:
		parts := make([]string, len(e.Items))
		for i, it := range e.Items {
			parts[i] = r.expr(it)
		}
		return "(" + strings.Join(parts, " | ") + ")"
	case OpOpt:
		return r.atom(e.Items[0]) + "?"
	case OpStar:
		return r.atom(e.Items[0]) + "*"
	}
	return ""
}

// atom renders e so that a postfix operator applies to all of it.
func (r larkRenderer) atom(e Expr) string {
	switch e.Op {
	case OpSym, OpAlt:
		return r.expr(e)
	default:
		return "(" + r.expr(e) + ")"
	}
}

func larkTerminal(t token.Terminal) string {
	if t.Kind == token.Pattern {
		return "/" + strings.ReplaceAll(t.Text, "/", `\/`) + "/"
	}
	return strconv.Quote(t.Text)
}

// Document is the serializable form of a compiled grammar.
type Document struct {
	Start       string        `json:"start" yaml:"start"`
	Fingerprint string        `json:"fingerprint" yaml:"fingerprint"`
	Rules       []RuleDoc     `json:"rules" yaml:"rules"`
	Terminals   []TerminalDoc `json:"terminals" yaml:"terminals"`
}

// RuleDoc lists the alternatives of one rule in Lark syntax.
type RuleDoc struct {
	Name         string   `json:"name" yaml:"name"`
	Alternatives []string `json:"alternatives" yaml:"alternatives"`
}

// TerminalDoc describes one terminal.
type TerminalDoc struct {
	Name    string `json:"name" yaml:"name"`
	Kind    string `json:"kind" yaml:"kind"`
	Text    string `json:"text" yaml:"text"`
	Ignored bool   `json:"ignored,omitempty" yaml:"ignored,omitempty"`
	// Reserved words the pattern never matches. The Lark text omits them;
	// Validate enforces them.
	Reserved []string `json:"reserved,omitempty" yaml:"reserved,omitempty"`
}

// Document returns the rule and terminal tables of c.
func (c *Compiled) Document() Document {
	r := larkRenderer{terms: make(map[string]token.Terminal, len(c.terms))}
	for _, t := range c.terms {
		r.terms[t.Name] = t
	}

	doc := Document{Start: StartRule, Fingerprint: c.Fingerprint()}
	for _, rule := range c.rules {
		rd := RuleDoc{Name: rule.Name}
		for _, alt := range rule.Alternatives() {
			rd.Alternatives = append(rd.Alternatives, r.expr(alt))
		}
		doc.Rules = append(doc.Rules, rd)
	}
	for _, t := range c.terms {
		doc.Terminals = append(doc.Terminals, TerminalDoc{
			Name:     t.Name,
			Kind:     t.Kind.String(),
			Text:     t.Text,
			Ignored:  t.Ignored,
			Reserved: t.Reserved,
		})
	}
	return doc
}
