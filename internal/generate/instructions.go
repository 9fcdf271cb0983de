package generate

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlfence/pkg/grammar"
)

// Instructions builds the system instructions sent with every request.
func Instructions(c *grammar.Compiled) string {
	s := c.Schema()

	var b strings.Builder
	fmt.Fprintf(&b, "You generate SQL for the dataset %s with columns %s. ",
		s.Qualified(), strings.Join(s.Columns(), ", "))
	b.WriteString("Use a single SELECT statement that matches the provided grammar and answer the user's request. ")
	for _, note := range s.Notes() {
		b.WriteString(strings.TrimSpace(note))
		b.WriteString(" ")
	}
	if numeric := s.NumericColumns(); len(numeric) > 0 {
		fmt.Fprintf(&b, "Numeric columns (%s) can be aggregated with SUM, AVG, MIN, MAX; use COUNT(column) for counts. ",
			strings.Join(numeric, ", "))
	} else {
		b.WriteString("Use COUNT(column) for counts. ")
	}
	b.WriteString("For comparisons, use GROUP BY on the grouping columns and ORDER BY to make results readable. ")
	b.WriteString("For top-N requests, ORDER BY the metric and include LIMIT N. ")
	b.WriteString("Use exact column names as shown. ")
	b.WriteString("Return only the needed aggregates or columns.")
	return b.String()
}
