// Package grammar compiles a schema into the SQL subset sqlfence accepts.
//
// Compile derives one rule table from a schema.Schema. The same table is
// rendered as Lark grammar text, handed to constrained generation as a
// decoding constraint, and lowered into an LALR(1) parser that Validate uses
// to gate every candidate query:
//
//	c, err := grammar.Compile(s)
//	if err != nil {
//	    return err // *ConfigError, fatal at startup
//	}
//	q, err := c.Validate(text)
//	if grammar.IsRejection(err) {
//	    // reject the request; no database interaction
//	}
//	rows, err := db.Query(ctx, q, limits)
//
// A Compiled value is immutable and safe for concurrent use.
package grammar

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/leapstack-labs/sqlfence/pkg/lalr"
	"github.com/leapstack-labs/sqlfence/pkg/schema"
	"github.com/leapstack-labs/sqlfence/pkg/token"
)

// StartRule is the rule every accepted query reduces to.
const StartRule = "start"

// Compiled is the grammar text and parser derived from one schema.
type Compiled struct {
	schema *schema.Schema
	rules  []Rule
	terms  []token.Terminal
	text   string
	parser *lalr.Table
}

// Compile builds the grammar for s. Every failure is a *ConfigError.
func Compile(s *schema.Schema) (*Compiled, error) {
	if s == nil {
		return nil, configErr("schema is nil")
	}

	terms, err := terminalSet(s)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	tokens, err := token.NewTable(terms)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	rules := ruleTable(s)
	if err := checkRules(rules); err != nil {
		return nil, err
	}
	parser, err := lalr.Build(tokens, lower(StartRule, rules))
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	return &Compiled{
		schema: s,
		rules:  rules,
		terms:  terms,
		text:   renderLark(rules, terms),
		parser: parser,
	}, nil
}

// CompileConfig validates cfg as a schema and compiles it.
func CompileConfig(cfg schema.Config) (*Compiled, error) {
	s, err := schema.New(cfg)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return Compile(s)
}

// MustCompile is like CompileConfig but panics on error.
func MustCompile(cfg schema.Config) *Compiled {
	c, err := CompileConfig(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

func checkRules(rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if !isRuleName(r.Name) {
			return configErr("rule name %q must be lower case", r.Name)
		}
		if seen[r.Name] {
			return configErr("rule %s is defined more than once", r.Name)
		}
		seen[r.Name] = true
	}
	if !seen[StartRule] {
		return configErr("no %s rule", StartRule)
	}
	return nil
}

// Text returns the grammar in Lark syntax.
func (c *Compiled) Text() string { return c.text }

// Fingerprint returns a hex SHA-256 of Text, useful to tell deployments apart.
func (c *Compiled) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.text))
	return hex.EncodeToString(sum[:])
}

// Rules returns the rule table the grammar was built from.
func (c *Compiled) Rules() []Rule { return slices.Clone(c.rules) }

// Terminals returns the terminal definitions in rendering order.
func (c *Compiled) Terminals() []token.Terminal { return slices.Clone(c.terms) }

// Schema returns the schema the grammar was compiled from.
func (c *Compiled) Schema() *schema.Schema { return c.schema }

// States returns the number of parser states.
func (c *Compiled) States() int { return c.parser.States() }
