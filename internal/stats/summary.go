package stats

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// DateRange bounds the parsed dates of a dataset. Both ends are nil when no
// record has a parsed date; that is the empty-dataset sentinel.
type DateRange struct {
	Start *civil.Date
	End   *civil.Date
}

// IsEmpty reports whether the range holds no dates.
func (r DateRange) IsEmpty() bool {
	return r.Start == nil || r.End == nil
}

// MarshalJSON renders both ends as DD/MM/YYYY, or null.
func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start *string `json:"start"`
		End   *string `json:"end"`
	}{Start: formatDate(r.Start), End: formatDate(r.End)})
}

func formatDate(d *civil.Date) *string {
	if d == nil {
		return nil
	}
	s := fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
	return &s
}

// MonthStat aggregates the amounts of one month. Count is the number of
// numeric amounts, which is also the denominator of Mean.
type MonthStat struct {
	Period string              `json:"period"`
	Count  int                 `json:"count"`
	Sum    decimal.Decimal     `json:"sum"`
	Mean   decimal.NullDecimal `json:"mean"`
}

// WeekSplit compares average amounts on weekends and weekdays. Only records
// with a parsed date and a numeric amount contribute.
type WeekSplit struct {
	WeekendAvg decimal.NullDecimal `json:"weekend_avg"`
	WeekdayAvg decimal.NullDecimal `json:"weekday_avg"`
}

// Summary is a read-only snapshot of dataset statistics. Callers must not
// modify its maps or slices.
type Summary struct {
	TotalTransactions int             `json:"total_transactions"`
	DateRange         DateRange       `json:"date_range"`
	TotalCredits      decimal.Decimal `json:"total_credits"`
	TotalDebits       decimal.Decimal `json:"total_debits"`

	// Labels with no records are absent from both maps.
	TransactionTypes map[string]int `json:"transaction_types"`
	Categories       map[string]int `json:"categories"`

	Monthly          []MonthStat `json:"monthly_averages"`
	WeekendVsWeekday WeekSplit   `json:"weekend_vs_weekday"`
}

// Aggregate computes the summary of a classified dataset. Null amounts add
// nothing to sums and averages but every record is counted.
func Aggregate(ds *ledger.Dataset) Summary {
	records := ds.Records

	s := Summary{
		TotalTransactions: len(records),
		TotalCredits:      decimal.Zero,
		TotalDebits:       decimal.Zero,
		TransactionTypes:  countLabels(records, func(r ledger.Record) string { return r.TransactionType }),
		Categories:        countLabels(records, func(r ledger.Record) string { return r.Category }),
		Monthly:           monthly(records),
	}

	for _, rec := range records {
		if d := rec.ParsedDate; d != nil {
			if s.DateRange.Start == nil || d.Before(*s.DateRange.Start) {
				s.DateRange.Start = copyDate(d)
			}
			if s.DateRange.End == nil || d.After(*s.DateRange.End) {
				s.DateRange.End = copyDate(d)
			}
		}
		if !rec.Amount.Valid {
			continue
		}
		switch a := rec.Amount.Decimal; {
		case a.IsPositive():
			s.TotalCredits = s.TotalCredits.Add(a)
		case a.IsNegative():
			s.TotalDebits = s.TotalDebits.Add(a)
		}
	}

	dated := lo.Filter(records, func(r ledger.Record, _ int) bool { return r.HasDate() })
	s.WeekendVsWeekday = WeekSplit{
		WeekendAvg: mean(lo.Filter(dated, func(r ledger.Record, _ int) bool { return r.IsWeekend })),
		WeekdayAvg: mean(lo.Filter(dated, func(r ledger.Record, _ int) bool { return !r.IsWeekend })),
	}

	return s
}

func countLabels(records []ledger.Record, label func(ledger.Record) string) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		if l := label(rec); l != "" {
			counts[l]++
		}
	}
	return counts
}

func monthly(records []ledger.Record) []MonthStat {
	groups := lo.GroupBy(
		lo.Filter(records, func(r ledger.Record, _ int) bool { return r.MonthPeriod != "" }),
		func(r ledger.Record) string { return r.MonthPeriod },
	)

	periods := lo.Keys(groups)
	sort.Strings(periods)

	out := make([]MonthStat, 0, len(periods))
	for _, p := range periods {
		sum, n := total(groups[p])
		out = append(out, MonthStat{Period: p, Count: n, Sum: sum, Mean: mean(groups[p])})
	}
	return out
}

// total sums numeric amounts and reports how many there were.
func total(records []ledger.Record) (decimal.Decimal, int) {
	sum := decimal.Zero
	n := 0
	for _, rec := range records {
		if rec.Amount.Valid {
			sum = sum.Add(rec.Amount.Decimal)
			n++
		}
	}
	return sum, n
}

// mean averages numeric amounts, or returns null when there are none.
func mean(records []ledger.Record) decimal.NullDecimal {
	sum, n := total(records)
	if n == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(n))))
}

func copyDate(d *civil.Date) *civil.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Clone returns a deep copy of the summary.
func (s Summary) Clone() Summary {
	out := s
	out.DateRange = DateRange{Start: copyDate(s.DateRange.Start), End: copyDate(s.DateRange.End)}
	out.TransactionTypes = maps.Clone(s.TransactionTypes)
	out.Categories = maps.Clone(s.Categories)
	out.Monthly = slices.Clone(s.Monthly)
	return out
}
