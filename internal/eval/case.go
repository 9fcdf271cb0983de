// Package eval scores SQL generation against expected SQL fragments.
//
// A case passes when the generated SQL, with all whitespace removed,
// contains every must_contain fragment, at least one fragment of each
// must_contain_any group and none of the must_not_contain fragments.
// Fragments are normalized the same way before matching.
package eval

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed cases.yaml
var defaultCases []byte

// Case is one eval: a prompt and the fragments its SQL must (not) contain.
type Case struct {
	Name           string     `yaml:"name"`
	Prompt         string     `yaml:"prompt"`
	MustContain    []string   `yaml:"must_contain"`
	MustContainAny [][]string `yaml:"must_contain_any"`
	MustNotContain []string   `yaml:"must_not_contain"`
}

type caseFile struct {
	Cases []Case `yaml:"cases"`
}

// Validate checks that c can be scored.
func (c Case) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("test case name is required")
	}
	if strings.TrimSpace(c.Prompt) == "" {
		return fmt.Errorf("prompt is required for test case %q", c.Name)
	}
	if len(c.MustContain) == 0 && len(c.MustContainAny) == 0 {
		return fmt.Errorf("expected patterns are required for test case %q", c.Name)
	}
	for _, group := range c.MustContainAny {
		if len(group) == 0 {
			return fmt.Errorf("empty must_contain_any group in test case %q", c.Name)
		}
	}
	return nil
}

var whitespace = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	return whitespace.ReplaceAllString(s, "")
}

// Check returns the problems found in sql for c; nil means the case passed.
func (c Case) Check(sql string) []string {
	got := normalize(sql)
	var problems []string
	for _, p := range c.MustContain {
		if !strings.Contains(got, normalize(p)) {
			problems = append(problems, "Missing: "+p)
		}
	}
	for _, group := range c.MustContainAny {
		found := false
		for _, p := range group {
			if strings.Contains(got, normalize(p)) {
				found = true
				break
			}
		}
		if !found {
			problems = append(problems, "Missing any of: "+strings.Join(group, ", "))
		}
	}
	for _, p := range c.MustNotContain {
		if strings.Contains(got, normalize(p)) {
			problems = append(problems, "Forbidden: "+p)
		}
	}
	return problems
}

// Parse decodes and validates a case file.
func Parse(data []byte) ([]Case, error) {
	var f caseFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse eval cases: %w", err)
	}
	if len(f.Cases) == 0 {
		return nil, errors.New("no eval cases defined")
	}
	for i, c := range f.Cases {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("case %d: %w", i+1, err)
		}
	}
	return f.Cases, nil
}

// LoadFile reads cases from a YAML file.
func LoadFile(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read eval cases: %w", err)
	}
	return Parse(data)
}

// DefaultCases returns the built-in cases for the default dataset.
func DefaultCases() []Case {
	cases, err := Parse(defaultCases)
	if err != nil {
		panic(err)
	}
	return cases
}
