package grammar

import "strings"

// Op is the kind of an EBNF expression node.
type Op uint8

const (
	// OpSym references a rule or terminal by name.
	OpSym Op = iota
	// OpSeq matches its items in order.
	OpSeq
	// OpAlt matches exactly one of its items.
	OpAlt
	// OpOpt matches its single item zero or one times.
	OpOpt
	// OpStar matches its single item zero or more times.
	OpStar
)

// Expr is a node of a rule body.
type Expr struct {
	Op    Op
	Name  string // OpSym only
	Items []Expr
}

// Sym references the rule or terminal called name.
func Sym(name string) Expr { return Expr{Op: OpSym, Name: name} }

// Seq matches items in order. A single item is returned unchanged.
func Seq(items ...Expr) Expr {
	if len(items) == 1 {
		return items[0]
	}
	return Expr{Op: OpSeq, Items: items}
}

// Alt matches one of items. A single item is returned unchanged.
func Alt(items ...Expr) Expr {
	if len(items) == 1 {
		return items[0]
	}
	return Expr{Op: OpAlt, Items: items}
}

// Opt matches x zero or one times.
func Opt(x Expr) Expr { return Expr{Op: OpOpt, Items: []Expr{x}} }

// Star matches x zero or more times.
func Star(x Expr) Expr { return Expr{Op: OpStar, Items: []Expr{x}} }

// Rule is one named production of the rule table.
type Rule struct {
	Name string
	Body Expr
}

// Alternatives returns the top-level alternatives of the rule body.
func (r Rule) Alternatives() []Expr {
	if r.Body.Op == OpAlt {
		return r.Body.Items
	}
	return []Expr{r.Body}
}

func isRuleName(name string) bool {
	return name != "" && strings.ToLower(name) == name
}
