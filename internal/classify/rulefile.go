package classify

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRules decodes a YAML rule file. A section left out of the file keeps
// the built-in rules for that section. Sections are YAML sequences, so the
// declared order is the matching order:
//
//	types:
//	  - label: SALARY
//	    keywords: [salary, payroll]
//	categories:
//	  - label: GROCERIES
//	    keywords: [grocery, supermarket]
func LoadRules(r io.Reader) (RuleSet, error) {
	var file RuleSet
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return RuleSet{}, fmt.Errorf("decode rules: %w", err)
	}

	rules := DefaultRules()
	if len(file.Types) > 0 {
		rules.Types = file.Types
	}
	if len(file.Categories) > 0 {
		rules.Categories = file.Categories
	}

	return rules.Normalize()
}

// LoadRulesFile reads rules from path.
func LoadRulesFile(path string) (RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("open rules %q: %w", path, err)
	}
	defer f.Close()

	rules, err := LoadRules(f)
	if err != nil {
		return RuleSet{}, fmt.Errorf("rules %q: %w", path, err)
	}
	return rules, nil
}

// FromFile returns the default classifier when path is empty and a
// classifier built from the rule file otherwise.
func FromFile(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	rules, err := LoadRulesFile(path)
	if err != nil {
		return nil, err
	}
	return New(rules)
}
