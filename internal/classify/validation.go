package classify

import (
	"fmt"
	"strings"
)

// reservedLabels are assigned by the classifier itself and cannot be declared
// by a rule.
var reservedLabels = map[string]bool{
	Unknown:         true,
	Other:           true,
	TypeUPIPayment:  true,
	TypeUPIReceived: true,
}

// Normalize returns a copy of the rule set with upper-cased labels and
// lower-cased keywords, or an error describing the first invalid rule.
func (rs RuleSet) Normalize() (RuleSet, error) {
	types, err := normalizeRules("type", rs.Types)
	if err != nil {
		return RuleSet{}, err
	}
	categories, err := normalizeRules("category", rs.Categories)
	if err != nil {
		return RuleSet{}, err
	}
	return RuleSet{Types: types, Categories: categories}, nil
}

func normalizeRules(kind string, rules []Rule) ([]Rule, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("no %s rules declared", kind)
	}

	seen := make(map[string]bool, len(rules))
	out := make([]Rule, 0, len(rules))

	for i, rule := range rules {
		label := normalizeLabel(rule.Label)
		if label == "" {
			return nil, fmt.Errorf("%s rule %d: label is empty", kind, i+1)
		}
		if reservedLabels[label] {
			return nil, fmt.Errorf("%s rule %d: label %q is reserved", kind, i+1, label)
		}
		if seen[label] {
			return nil, fmt.Errorf("%s rule %d: duplicate label %q", kind, i+1, label)
		}
		seen[label] = true

		keywords := make([]string, 0, len(rule.Keywords))
		for _, k := range rule.Keywords {
			if k = normalizeKeyword(k); k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("%s rule %d (%s): no keywords", kind, i+1, label)
		}

		out = append(out, Rule{Label: label, Keywords: keywords})
	}

	return out, nil
}

func normalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

func normalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}
