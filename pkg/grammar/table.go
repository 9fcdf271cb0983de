package grammar

import "github.com/leapstack-labs/sqlfence/pkg/schema"

// ruleTable builds the rule table for s. It is the single source of both the
// rendered grammar text and the parser.
func ruleTable(s *schema.Schema) []Rule {
	syms := func(names ...string) []Expr {
		out := make([]Expr, len(names))
		for i, n := range names {
			out[i] = Sym(n)
		}
		return out
	}
	columnTokens := func(cols []string) []Expr {
		out := make([]Expr, len(cols))
		for i, c := range cols {
			out[i] = Sym(ColumnToken(c))
		}
		return out
	}
	list := func(item string) Expr {
		return Seq(Sym(item), Star(Seq(Sym("COMMA"), Sym(item))))
	}

	countExpr := Seq(Sym("COUNT"), Sym("LPAR"), Sym("column"), Sym("RPAR"), Opt(Sym("alias")))
	aggExpr := countExpr
	numeric := s.NumericColumns()
	if len(numeric) > 0 {
		aggExpr = Alt(
			Seq(Sym("numeric_func"), Sym("LPAR"), Sym("numeric_column"), Sym("RPAR"), Opt(Sym("alias"))),
			countExpr,
		)
	}

	rules := []Rule{
		{"start", Sym("select_stmt")},
		{"select_stmt", Seq(
			Sym("SELECT"), Sym("select_list"), Sym("FROM"), Sym("qualified_table"),
			Opt(Sym("where_clause")),
			Opt(Sym("group_by_clause")),
			Opt(Sym("order_by_clause")),
			Opt(Sym("limit_clause")),
		)},
		{"select_list", list("select_item")},
		{"select_item", Alt(Sym("agg_expr"), Sym("column"))},
		{"agg_expr", aggExpr},
	}
	if len(numeric) > 0 {
		rules = append(rules, Rule{"numeric_func", Alt(syms(numericAggregates...)...)})
	}
	rules = append(rules,
		Rule{"alias", Seq(Sym("AS"), Sym(termIdentifier))},
		Rule{"where_clause", Seq(Sym("WHERE"), Sym("condition"))},
		Rule{"condition", Seq(Sym("comparison"), Star(Seq(Sym("AND"), Sym("comparison"))))},
		Rule{"comparison", Alt(
			Seq(Sym("column"), Sym("comparator"), Sym("literal")),
			Seq(Sym("column"), Sym("IN"), Sym("LPAR"), Sym("literal_list"), Sym("RPAR")),
		)},
		Rule{"literal_list", list("literal")},
		Rule{"comparator", Alt(syms("EQ", "GE", "LE", "GT", "LT")...)},
		Rule{"literal", Alt(Sym("string_literal"), Sym("number_literal"))},
		Rule{"string_literal", Sym(termQuoted)},
		Rule{"number_literal", Sym(numberTerminal(s))},
		Rule{"group_by_clause", Seq(Sym("GROUP"), Sym("BY"), Sym("column_list"))},
		Rule{"column_list", list("column")},
		Rule{"order_by_clause", Seq(Sym("ORDER"), Sym("BY"), list("order_item"))},
		Rule{"order_item", Seq(Alt(Sym("column"), Sym(termIdentifier)), Opt(Sym("order_dir")))},
		Rule{"order_dir", Alt(Sym("ASC"), Sym("DESC"))},
		Rule{"limit_clause", Seq(Sym("LIMIT"), Sym(termInt))},
		Rule{"qualified_table", Seq(Sym(termDatabase), Sym("DOT"), Sym(termTable))},
		Rule{"column", Alt(columnTokens(s.Columns())...)},
	)
	if len(numeric) > 0 {
		rules = append(rules, Rule{"numeric_column", Alt(columnTokens(numeric)...)})
	}
	return rules
}
