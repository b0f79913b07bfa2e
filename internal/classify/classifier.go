package classify

import (
	"strings"

	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/samber/lo"
)

// Labels is the pair of labels assigned to one description.
type Labels struct {
	Type     string `json:"transaction_type"`
	Category string `json:"category"`
}

// Classifier assigns transaction types and categories from ordered keyword
// rules. It is safe for concurrent use.
type Classifier struct {
	rules RuleSet
}

// New validates rules and returns a classifier that applies them.
func New(rules RuleSet) (*Classifier, error) {
	normalized, err := rules.Normalize()
	if err != nil {
		return nil, err
	}
	return &Classifier{rules: normalized}, nil
}

// Default returns a classifier using the built-in rules.
func Default() *Classifier {
	return &Classifier{rules: DefaultRules()}
}

// Classify labels a description. A nil description is UNKNOWN for both
// labels.
func (c *Classifier) Classify(description *string) Labels {
	if description == nil {
		return Labels{Type: Unknown, Category: Unknown}
	}
	text := strings.ToLower(*description)
	return Labels{
		Type:     c.classifyType(text),
		Category: firstMatch(c.rules.Categories, text),
	}
}

func (c *Classifier) classifyType(text string) string {
	if strings.Contains(text, upiMarker) {
		if containsAny(text, upiCreditWords) {
			return TypeUPIReceived
		}
		return TypeUPIPayment
	}
	return firstMatch(c.rules.Types, text)
}

// Categories returns the category labels in declared order.
func (c *Classifier) Categories() []string {
	return lo.Map(c.rules.Categories, func(r Rule, _ int) string { return r.Label })
}

// Rules returns a copy of the rules in use.
func (c *Classifier) Rules() RuleSet {
	return RuleSet{
		Types:      cloneRules(c.rules.Types),
		Categories: cloneRules(c.rules.Categories),
	}
}

// Apply returns a copy of ds with every record labelled. ds is not modified.
func (c *Classifier) Apply(ds *ledger.Dataset) *ledger.Dataset {
	records := make([]ledger.Record, len(ds.Records))
	for i, rec := range ds.Records {
		labels := c.Classify(rec.Description)
		rec.TransactionType = labels.Type
		rec.Category = labels.Category
		records[i] = rec
	}
	return ds.WithRecords(records)
}

// firstMatch returns the label of the first rule matching text, or OTHER.
func firstMatch(rules []Rule, text string) string {
	for _, rule := range rules {
		if containsAny(text, rule.Keywords) {
			return rule.Label
		}
	}
	return Other
}

func containsAny(text string, keywords []string) bool {
	return lo.ContainsBy(keywords, func(k string) bool {
		return strings.Contains(text, k)
	})
}
