package question

import (
	"strings"
)

// Ranking selects the records with the largest or smallest amounts.
type Ranking string

const (
	RankingNone   Ranking = ""
	RankingTop    Ranking = "TOP"
	RankingBottom Ranking = "BOTTOM"
)

// Signals are the intent flags extracted from a question. Several may be set
// at once.
type Signals struct {
	Recent         bool    `json:"recent"`
	LastMonth      bool    `json:"last_month"`
	Category       string  `json:"category,omitempty"`
	Ranking        Ranking `json:"ranking,omitempty"`
	PatternRequest bool    `json:"pattern_request"`
}

// IsZero reports whether no signal is set.
func (s Signals) IsZero() bool {
	return s == Signals{}
}

// Interpreter extracts signals from questions using substring matches. It
// knows the declared category names so it can recognise category scopes.
type Interpreter struct {
	categories []string
}

// NewInterpreter returns an interpreter matching categories in the given
// order.
func NewInterpreter(categories []string) *Interpreter {
	return &Interpreter{categories: append([]string(nil), categories...)}
}

// Interpret extracts the signals of question.
func (in *Interpreter) Interpret(question string) Signals {
	q := strings.ToLower(question)

	s := Signals{
		Recent:         strings.Contains(q, "recent"),
		LastMonth:      strings.Contains(q, "last month"),
		PatternRequest: strings.Contains(q, "pattern") || strings.Contains(q, "trend"),
	}

	switch {
	case strings.Contains(q, "highest") || strings.Contains(q, "top"):
		s.Ranking = RankingTop
	case strings.Contains(q, "lowest"):
		s.Ranking = RankingBottom
	}

	for _, c := range in.categories {
		if c != "" && strings.Contains(q, strings.ToLower(c)) {
			s.Category = c
			break
		}
	}

	return s
}
