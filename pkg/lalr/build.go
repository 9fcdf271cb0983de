package lalr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlfence/pkg/token"
)

type actionKind uint8

const (
	actError actionKind = iota
	actShift
	actReduce
	actAccept
)

type action struct {
	kind actionKind
	arg  int32 // target state for shift, production index for reduce
}

// Table holds LALR(1) action and goto tables for one grammar.
type Table struct {
	terms  *token.Table
	syms   symbols
	prods  []prod
	action [][]action // [state][terminal]
	gotos  [][]int32  // [state][nonterminal-nterm], -1 when absent
}

// ConflictError reports that a grammar is not LALR(1).
type ConflictError struct {
	State    int
	Terminal string
	Existing string
	Incoming string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("lalr: conflict in state %d on %s: %s vs %s", e.State, e.Terminal, e.Existing, e.Incoming)
}

// AmbiguityError reports two literal terminals with the same text that are
// both acceptable in one parser state, so the lexer could not tell them apart.
type AmbiguityError struct {
	State int
	Text  string
	First string
	Other string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("lalr: %q is ambiguous in state %d: it lexes as both %s and %s", e.Text, e.State, e.First, e.Other)
}

// item is an LR(0) core: a production with a dot position.
type item struct {
	prod int32
	dot  int32
}

type lrState struct {
	kernel map[item]bitset
	trans  map[int]int
}

type builder struct {
	syms     symbols
	prods    []prod
	byHead   map[int][]int
	nullable []bool
	first    []bitset
}

// Build constructs LALR(1) tables for g over the terminals in terms.
// It fails when a body references an unknown symbol, the grammar has a
// shift/reduce or reduce/reduce conflict, or literals sharing a text are
// acceptable in the same state.
func Build(terms *token.Table, g Grammar) (*Table, error) {
	b, err := newBuilder(terms, g)
	if err != nil {
		return nil, err
	}
	b.computeFirst()
	states := b.collection()

	t := &Table{
		terms:  terms,
		syms:   b.syms,
		prods:  b.prods,
		action: make([][]action, len(states)),
		gotos:  make([][]int32, len(states)),
	}
	nterm := b.syms.nterm
	nnon := len(b.syms.names) - nterm

	for s, st := range states {
		row := make([]action, nterm)
		gto := make([]int32, nnon)
		for i := range gto {
			gto[i] = -1
		}
		t.action[s] = row
		t.gotos[s] = gto

		for _, x := range sortedKeys(st.trans) {
			target := st.trans[x]
			if b.syms.isTerminal(x) {
				row[x] = action{kind: actShift, arg: int32(target)}
			} else {
				gto[x-nterm] = int32(target)
			}
		}

		cl := b.closure(st.kernel)
		for _, it := range sortedItems(cl) {
			p := b.prods[it.prod]
			if int(it.dot) != len(p.body) {
				continue
			}
			if it.prod == 0 {
				if err := t.set(s, int(token.EOF), action{kind: actAccept}); err != nil {
					return nil, err
				}
				continue
			}
			var conflict error
			cl[it].each(func(a int) {
				if conflict == nil {
					conflict = t.set(s, a, action{kind: actReduce, arg: it.prod})
				}
			})
			if conflict != nil {
				return nil, conflict
			}
		}
	}
	if err := t.checkLexical(); err != nil {
		return nil, err
	}
	return t, nil
}

// checkLexical verifies that the contextual lexer is deterministic: within a
// state, every acceptable literal has a distinct text.
func (t *Table) checkLexical() error {
	for s, row := range t.action {
		seen := make(map[string]int)
		for typ := 1; typ < len(row); typ++ {
			if row[typ].kind == actError {
				continue
			}
			term := t.terms.Terminal(token.Type(typ))
			if term.Kind != token.Literal {
				continue
			}
			if prev, ok := seen[term.Text]; ok {
				return &AmbiguityError{State: s, Text: term.Text, First: t.syms.names[prev], Other: term.Name}
			}
			seen[term.Text] = typ
		}
	}
	return nil
}

func newBuilder(terms *token.Table, g Grammar) (*builder, error) {
	if g.Start == "" {
		return nil, resolveErr("grammar has no start symbol")
	}
	nterm := terms.Len()
	syms := symbols{nterm: nterm, nonterms: make(map[string]int)}
	for i := 0; i < nterm; i++ {
		syms.names = append(syms.names, terms.Name(token.Type(i)))
	}
	addNonterm := func(name string) {
		if _, ok := syms.nonterms[name]; !ok {
			syms.nonterms[name] = len(syms.names)
			syms.names = append(syms.names, name)
		}
	}
	addNonterm(augmentedStart)
	for _, p := range g.Productions {
		if _, isTerm := terms.Lookup(p.Head); isTerm {
			return nil, resolveErr("%q is both a terminal and a rule", p.Head)
		}
		addNonterm(p.Head)
	}
	start, ok := syms.nonterms[g.Start]
	if !ok {
		return nil, resolveErr("start symbol %q has no productions", g.Start)
	}

	b := &builder{syms: syms, byHead: make(map[int][]int)}
	b.prods = append(b.prods, prod{head: syms.nonterms[augmentedStart], body: []int{start}})
	ignored := make(map[token.Type]bool)
	for _, typ := range terms.Ignored() {
		ignored[typ] = true
	}
	for _, p := range g.Productions {
		body := make([]int, 0, len(p.Body))
		for _, name := range p.Body {
			if nt, ok := syms.nonterms[name]; ok && name != augmentedStart {
				body = append(body, nt)
				continue
			}
			typ, ok := terms.Lookup(name)
			if !ok || typ == token.EOF {
				return nil, resolveErr("production %s references unknown symbol %q", p, name)
			}
			if ignored[typ] {
				return nil, resolveErr("production %s references ignored terminal %s", p, name)
			}
			body = append(body, int(typ))
		}
		b.prods = append(b.prods, prod{head: syms.nonterms[p.Head], body: body})
	}
	for i, p := range b.prods {
		b.byHead[p.head] = append(b.byHead[p.head], i)
	}
	return b, nil
}

// computeFirst fills nullable and FIRST for every nonterminal.
func (b *builder) computeFirst() {
	n := len(b.syms.names)
	b.nullable = make([]bool, n)
	b.first = make([]bitset, n)
	for i := b.syms.nterm; i < n; i++ {
		b.first[i] = newBitset(b.syms.nterm)
	}

	for changed := true; changed; {
		changed = false
		for _, p := range b.prods {
			allNullable := true
			for _, sym := range p.body {
				if b.syms.isTerminal(sym) {
					if !b.first[p.head].has(sym) {
						b.first[p.head].set(sym)
						changed = true
					}
					allNullable = false
					break
				}
				if b.first[p.head].union(b.first[sym]) {
					changed = true
				}
				if !b.nullable[sym] {
					allNullable = false
					break
				}
			}
			if allNullable && !b.nullable[p.head] {
				b.nullable[p.head] = true
				changed = true
			}
		}
	}
}

// firstSeq returns FIRST(seq la).
func (b *builder) firstSeq(seq []int, la bitset) bitset {
	out := newBitset(b.syms.nterm)
	for _, sym := range seq {
		if b.syms.isTerminal(sym) {
			out.set(sym)
			return out
		}
		out.union(b.first[sym])
		if !b.nullable[sym] {
			return out
		}
	}
	out.union(la)
	return out
}

// closure expands a kernel into the full LR(1) item set, merging lookaheads per core.
func (b *builder) closure(kernel map[item]bitset) map[item]bitset {
	res := make(map[item]bitset, len(kernel)*4)
	work := make([]item, 0, len(kernel)*4)
	for it, la := range kernel {
		res[it] = la.clone()
		work = append(work, it)
	}
	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]

		p := b.prods[it.prod]
		if int(it.dot) >= len(p.body) {
			continue
		}
		next := p.body[it.dot]
		if b.syms.isTerminal(next) {
			continue
		}
		la := b.firstSeq(p.body[it.dot+1:], res[it])
		for _, pi := range b.byHead[next] {
			ni := item{prod: int32(pi)}
			if cur, ok := res[ni]; ok {
				if cur.union(la) {
					work = append(work, ni)
				}
				continue
			}
			res[ni] = la.clone()
			work = append(work, ni)
		}
	}
	return res
}

// collection builds the LALR(1) automaton. States are identified by their
// LR(0) kernel; lookaheads arriving at an existing state are merged into it and
// the state is reprocessed until nothing changes.
func (b *builder) collection() []*lrState {
	eof := newBitset(b.syms.nterm)
	eof.set(int(token.EOF))

	states := []*lrState{{
		kernel: map[item]bitset{{prod: 0, dot: 0}: eof},
		trans:  make(map[int]int),
	}}
	index := map[string]int{coreKey(states[0].kernel): 0}
	queued := []bool{true}
	queue := []int{0}

	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		queued[s] = false

		cl := b.closure(states[s].kernel)
		next := make(map[int]map[item]bitset)
		for it, la := range cl {
			p := b.prods[it.prod]
			if int(it.dot) >= len(p.body) {
				continue
			}
			x := p.body[it.dot]
			k, ok := next[x]
			if !ok {
				k = make(map[item]bitset)
				next[x] = k
			}
			k[item{prod: it.prod, dot: it.dot + 1}] = la.clone()
		}

		for _, x := range sortedKeys(next) {
			k := next[x]
			key := coreKey(k)
			t, ok := index[key]
			if !ok {
				t = len(states)
				states = append(states, &lrState{kernel: k, trans: make(map[int]int)})
				index[key] = t
				queued = append(queued, true)
				queue = append(queue, t)
			} else {
				changed := false
				for it, la := range k {
					if states[t].kernel[it].union(la) {
						changed = true
					}
				}
				if changed && !queued[t] {
					queued[t] = true
					queue = append(queue, t)
				}
			}
			states[s].trans[x] = t
		}
	}
	return states
}

func (t *Table) set(state, terminal int, a action) error {
	cur := t.action[state][terminal]
	if cur.kind == actError || cur == a {
		t.action[state][terminal] = a
		return nil
	}
	return &ConflictError{
		State:    state,
		Terminal: t.syms.names[terminal],
		Existing: t.describe(cur),
		Incoming: t.describe(a),
	}
}

func (t *Table) describe(a action) string {
	switch a.kind {
	case actShift:
		return "shift " + strconv.Itoa(int(a.arg))
	case actReduce:
		return "reduce " + t.syms.describe(t.prods[a.arg], -1)
	case actAccept:
		return "accept"
	default:
		return "error"
	}
}

func coreKey(kernel map[item]bitset) string {
	items := sortedItems(kernel)
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString(strconv.Itoa(int(it.prod)))
		sb.WriteByte('.')
		sb.WriteString(strconv.Itoa(int(it.dot)))
		sb.WriteByte(';')
	}
	return sb.String()
}

func sortedItems(m map[item]bitset) []item {
	items := make([]item, 0, len(m))
	for it := range m {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].prod != items[j].prod {
			return items[i].prod < items[j].prod
		}
		return items[i].dot < items[j].dot
	})
	return items
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// States returns the number of parser states.
func (t *Table) States() int { return len(t.action) }

// Productions returns the number of BNF productions, including the augmented start.
func (t *Table) Productions() int { return len(t.prods) }
