package grammar

import (
	"fmt"

	"github.com/leapstack-labs/sqlfence/pkg/lalr"
)

// lowerer rewrites EBNF rules into plain BNF productions. Optional,
// repeated and grouped alternative sub-expressions become helper
// nonterminals:
//
//	x?      -> h: ε | x
//	x*      -> h: ε | h x
//	(a | b) -> h: a | b
type lowerer struct {
	prods []lalr.Production
	n     int
}

func lower(start string, rules []Rule) lalr.Grammar {
	l := &lowerer{}
	for _, r := range rules {
		for _, alt := range r.Alternatives() {
			l.add(r.Name, l.seq(r.Name, alt))
		}
	}
	return lalr.Grammar{Start: start, Productions: l.prods}
}

func (l *lowerer) add(head string, body []string) {
	l.prods = append(l.prods, lalr.Production{Head: head, Body: body})
}

func (l *lowerer) fresh(owner, kind string) string {
	l.n++
	return fmt.Sprintf("__%s_%s%d", owner, kind, l.n)
}

func (l *lowerer) seq(owner string, e Expr) []string {
	switch e.Op {
	case OpSym:
		return []string{e.Name}
	case OpSeq:
		var out []string
		for _, it := range e.Items {
			out = append(out, l.seq(owner, it)...)
		}
		return out
	case OpAlt:
		h := l.fresh(owner, "alt")
		for _, it := range e.Items {
			l.add(h, l.seq(owner, it))
		}
		return []string{h}
	case OpOpt:
		h := l.fresh(owner, "opt")
		l.add(h, nil)
		l.add(h, l.seq(owner, e.Items[0]))
		return []string{h}
	case OpStar:
		h := l.fresh(owner, "star")
		l.add(h, nil)
		l.add(h, append([]string{h}, l.seq(owner, e.Items[0])...))
		return []string{h}
	}
	return nil
}
