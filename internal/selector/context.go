package selector

import (
	"sort"

	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/dvloznov/ledger-qa/internal/question"
	"github.com/dvloznov/ledger-qa/internal/stats"
	"github.com/samber/lo"
)

const (
	// MaxSampleRecords bounds the records of every payload.
	MaxSampleRecords = 10
	// RankingSize is the number of records kept by a ranking signal.
	RankingSize = 5
)

// Payload is the context handed to a downstream generator. It is built
// fresh for every question and shares no memory with the dataset.
type Payload struct {
	Question        string           `json:"question"`
	Statistics      stats.Summary    `json:"statistics"`
	Signals         question.Signals `json:"signals"`
	MatchedCategory string           `json:"matched_category,omitempty"`
	SampleRecords   []ledger.Record  `json:"sample_records"`
	Patterns        *stats.Patterns  `json:"patterns,omitempty"`

	// PreviousQuestions are earlier questions of the same conversation,
	// oldest first. They are rendered into the prompt, not the context.
	PreviousQuestions []string `json:"-"`
}

// BuildContext selects the records relevant to a question. Filters apply in
// a fixed order: the last-month filter and recency ordering first, then the
// category filter, then ranking. The sample is cut to MaxSampleRecords.
func BuildContext(ds *ledger.Dataset, summary stats.Summary, signals question.Signals, q string) Payload {
	sample := append([]ledger.Record(nil), ds.Records...)

	if signals.LastMonth {
		latest := LatestPeriod(ds.Records)
		sample = lo.Filter(sample, func(r ledger.Record, _ int) bool {
			return latest != "" && r.MonthPeriod == latest
		})
	}
	if signals.Recent {
		SortRecent(sample)
	}

	if signals.Category != "" {
		sample = lo.Filter(sample, func(r ledger.Record, _ int) bool {
			return r.Category == signals.Category
		})
	}

	if signals.Ranking != question.RankingNone {
		sample = Rank(sample, signals.Ranking, RankingSize)
	}

	if len(sample) > MaxSampleRecords {
		sample = sample[:MaxSampleRecords]
	}

	p := Payload{
		Question:        q,
		Statistics:      summary.Clone(),
		Signals:         signals,
		MatchedCategory: signals.Category,
		SampleRecords:   ledger.CloneRecords(sample),
	}
	if signals.PatternRequest {
		patterns := stats.BuildPatterns(ds)
		p.Patterns = &patterns
	}
	return p
}

// LatestPeriod returns the most recent month present, or "" when no record
// has a date.
func LatestPeriod(records []ledger.Record) string {
	latest := ""
	for _, r := range records {
		if r.MonthPeriod > latest {
			latest = r.MonthPeriod
		}
	}
	return latest
}

// SortRecent orders records by date, newest first. Undated records go last
// and ties keep their order.
func SortRecent(records []ledger.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].ParsedDate, records[j].ParsedDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// Rank returns up to n records with the largest (TOP) or smallest (BOTTOM)
// amounts. Records without a numeric amount are skipped and ties keep the
// original dataset order.
func Rank(records []ledger.Record, ranking question.Ranking, n int) []ledger.Record {
	ranked := lo.Filter(records, func(r ledger.Record, _ int) bool { return r.HasAmount() })
	sort.SliceStable(ranked, func(i, j int) bool {
		c := ranked[i].Amount.Decimal.Cmp(ranked[j].Amount.Decimal)
		if ranking == question.RankingBottom {
			c = -c
		}
		if c != 0 {
			return c > 0
		}
		return ranked[i].Row < ranked[j].Row
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
