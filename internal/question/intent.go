package question

import "strings"

// Intent is the kind of question direct-answer mode can answer without a
// generator.
type Intent int

const (
	// IntentUnknown means no direct-answer rule matched.
	IntentUnknown Intent = iota
	IntentTotal
	IntentCount
	IntentYearly
)

func (i Intent) String() string {
	switch i {
	case IntentTotal:
		return "total"
	case IntentCount:
		return "count"
	case IntentYearly:
		return "yearly"
	default:
		return "unknown"
	}
}

var (
	totalKeywords      = []string{"total", "sum", "spend", "amount", "inr"}
	countKeywords      = []string{"count"}
	perYearKeywords    = []string{"per year", "yearly", "each year"}
	lastThreeKeywords  = []string{"last 3", "past 3", "three year"}
	normalizeReplacers = strings.NewReplacer("spent", "spend", "so far", "", "so dar", "")
)

// Normalize lower-cases a question and folds common phrasings so keyword
// rules see one spelling.
func Normalize(question string) string {
	return normalizeReplacers.Replace(strings.ToLower(question))
}

// DirectIntent classifies a question for direct-answer mode. Rules are tried
// in order: totals, then counts, then the three-year breakdown.
func DirectIntent(question string) Intent {
	q := Normalize(question)
	switch {
	case containsAny(q, totalKeywords):
		return IntentTotal
	case containsAny(q, countKeywords):
		return IntentCount
	case containsAny(q, perYearKeywords) && containsAny(q, lastThreeKeywords):
		return IntentYearly
	default:
		return IntentUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
