package grammar

import (
	"errors"
	"sync"
	"testing"

	"github.com/leapstack-labs/sqlfence/pkg/lalr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptanceScenarios(t *testing.T) {
	c := compilePeople(t)

	tests := []struct {
		name string
		sql  string
		want error
	}{
		{
			name: "numeric aggregate with filter",
			sql:  "SELECT AVG(height_cm) FROM default.people WHERE gender = 'F'",
		},
		{
			name: "grouped aggregate ordered by alias",
			sql:  "SELECT fitness_class, AVG(age) AS avg_age FROM default.people GROUP BY fitness_class ORDER BY avg_age DESC LIMIT 5",
		},
		{
			name: "wildcard",
			sql:  "SELECT * FROM default.people",
			want: ErrGrammarMismatch,
		},
		{
			name: "numeric aggregate on categorical column",
			sql:  "SELECT AVG(gender) FROM default.people",
			want: ErrGrammarMismatch,
		},
		{
			name: "ddl",
			sql:  "DROP TABLE default.people",
			want: ErrGrammarMismatch,
		},
		{
			name: "empty",
			sql:  "",
			want: ErrEmptyQuery,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := c.Validate(tt.sql)
			if tt.want == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.sql, q.String())
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, q.IsZero())
		})
	}
}

func TestValidate_Accepts(t *testing.T) {
	c := compilePeople(t)

	tests := []string{
		"SELECT age FROM default.people",
		"SELECT age, gender, height_cm, fitness_class FROM default.people",
		"SELECT COUNT(gender) FROM default.people",
		"SELECT COUNT(age) AS n FROM default.people",
		"SELECT MIN(age), MAX(age), SUM(height_cm) FROM default.people LIMIT 10",
		"SELECT AVG(age) FROM default.people WHERE gender IN ('F', 'M') AND age >= 30 AND height_cm < 180",
		"SELECT age FROM default.people WHERE age <= 40 AND age > 20 AND age = 33",
		"SELECT gender, COUNT(gender) AS n FROM default.people GROUP BY gender ORDER BY n DESC",
		"SELECT age, gender FROM default.people ORDER BY age ASC, gender",
		"SELECT gender, age FROM default.people GROUP BY gender, age",
		"SELECT AVG(age) AS age FROM default.people ORDER BY age",
		"SELECT SUM(height_cm) AS total FROM default.people WHERE fitness_class = 'A'",
		"SELECT age FROM default.people WHERE gender = 'x; DROP TABLE y'",
		"SELECT age FROM default.people WHERE gender = ''",
		"SELECT age\n  FROM default.people\n WHERE age > 20",
		"  SELECT age FROM default.people \n",
		"SELECT age FROM default . people",
		"SELECT COUNT( gender )AS n FROM default.people",
		"SELECT COUNT(age) AS selected FROM default.people ORDER BY selected",
		"SELECT MAX(age) AS max_age FROM default.people ORDER BY max_age DESC",
	}
	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			q, err := c.Validate(sql)
			require.NoError(t, err)
			assert.Equal(t, sql, q.String(), "accepted text must be returned unchanged")
			assert.False(t, q.IsZero())
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	c := compilePeople(t)

	tests := []struct {
		name string
		sql  string
	}{
		{"lower case keywords", "select age from default.people"},
		{"trailing semicolon", "SELECT age FROM default.people;"},
		{"second statement", "SELECT age FROM default.people; DROP TABLE default.people"},
		{"unknown column", "SELECT weight FROM default.people"},
		{"misspelled column", "SELECT ages FROM default.people"},
		{"column prefix of word", "SELECT age_group FROM default.people"},
		{"unknown column in filter", "SELECT age FROM default.people WHERE weight > 3"},
		{"unknown column in group by", "SELECT age FROM default.people GROUP BY weight"},
		{"other table", "SELECT age FROM default.other"},
		{"other database", "SELECT age FROM other.people"},
		{"unqualified table", "SELECT age FROM people"},
		{"table case differs", "SELECT age FROM default.People"},
		{"sum on categorical", "SELECT SUM(gender) FROM default.people"},
		{"min on categorical", "SELECT MIN(fitness_class) FROM default.people"},
		{"count star", "SELECT COUNT(*) FROM default.people"},
		{"negative integer", "SELECT age FROM default.people WHERE age = -5"},
		{"decimal in integer mode", "SELECT age FROM default.people WHERE age = 1.5"},
		{"string limit", "SELECT age FROM default.people LIMIT 'x'"},
		{"alias in filter", "SELECT AVG(age) AS a FROM default.people WHERE a > 3"},
		{"alias on bare column", "SELECT age AS a FROM default.people"},
		{"union", "SELECT age FROM default.people UNION SELECT age FROM default.people"},
		{"or", "SELECT age FROM default.people WHERE age = 1 OR age = 2"},
		{"comment", "SELECT age FROM default.people -- hi"},
		{"duplicate limit", "SELECT age FROM default.people LIMIT 5 LIMIT 5"},
		{"clauses out of order", "SELECT age FROM default.people ORDER BY age WHERE age = 1"},
		{"parenthesized column", "SELECT (age) FROM default.people"},
		{"empty in list", "SELECT age FROM default.people WHERE age IN ()"},
		{"keyword glued to column", "SELECTage FROM default.people"},
		{"nested select", "SELECT age FROM default.people WHERE age IN (SELECT age FROM default.people)"},
		{"double quoted string", `SELECT age FROM default.people WHERE gender = "F"`},
		{"unterminated string", "SELECT age FROM default.people WHERE gender = 'F"},
		{"no from", "SELECT age"},
		{"join", "SELECT age FROM default.people JOIN default.people"},
		{"not equal", "SELECT age FROM default.people WHERE age != 3"},
		{"keyword alias", "SELECT AVG(age) AS FROM FROM default.people"},
		{"lower case keyword alias", "SELECT COUNT(age) AS select FROM default.people"},
		{"aggregate alias", "SELECT COUNT(age) AS Max FROM default.people"},
		{"order by keyword", "SELECT age FROM default.people ORDER BY DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := c.Validate(tt.sql)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrGrammarMismatch)
			assert.True(t, q.IsZero())
		})
	}
}

func TestValidate_Empty(t *testing.T) {
	c := compilePeople(t)

	for _, sql := range []string{"", " ", "\n\t  \r\n"} {
		_, err := c.Validate(sql)
		assert.ErrorIs(t, err, ErrEmptyQuery)
		assert.Equal(t, "empty query", err.Error())
	}
}

func TestValidate_RejectionDoesNotLeakDetail(t *testing.T) {
	c := compilePeople(t)

	_, err := c.Validate("SELECT * FROM default.people")
	require.Error(t, err)
	assert.Equal(t, "query does not match the allowed grammar", err.Error())
	assert.True(t, IsRejection(err))
	assert.False(t, IsConfigError(err))

	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	var syn *lalr.SyntaxError
	require.True(t, errors.As(rej.Detail, &syn))
	assert.Equal(t, 8, syn.Pos.Column)
	assert.Equal(t, "*", syn.Found)
}

func TestValidate_Soundness(t *testing.T) {
	c := compilePeople(t)

	sqls := []string{
		"SELECT AVG(height_cm) FROM default.people WHERE gender = 'F'",
		"SELECT fitness_class, COUNT(age) AS n FROM default.people GROUP BY fitness_class ORDER BY n DESC LIMIT 3",
	}
	for _, sql := range sqls {
		q, err := c.Validate(sql)
		require.NoError(t, err)
		again, err := c.Validate(q.String())
		require.NoError(t, err)
		assert.Equal(t, q, again)
	}
}

func TestValidate_Concurrent(t *testing.T) {
	c := compilePeople(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_, err := c.Validate("SELECT AVG(age) FROM default.people WHERE gender = 'M'")
				assert.NoError(t, err)
			case 1:
				_, err := c.Validate("SELECT * FROM default.people")
				assert.ErrorIs(t, err, ErrGrammarMismatch)
			default:
				_, err := c.Validate("")
				assert.ErrorIs(t, err, ErrEmptyQuery)
			}
		}(i)
	}
	wg.Wait()
}

func TestQuery_ZeroValue(t *testing.T) {
	var q Query
	assert.True(t, q.IsZero())
	assert.Empty(t, q.String())
}
