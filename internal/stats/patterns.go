package stats

import (
	"sort"
	"time"

	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// PeriodSum is the sum of amounts in one month.
type PeriodSum struct {
	Period string          `json:"period"`
	Sum    decimal.Decimal `json:"sum"`
}

// CategoryStat is the number of numeric amounts and their sum in one category.
type CategoryStat struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Sum      decimal.Decimal `json:"sum"`
}

// WeekdayMean is the mean amount on one day of the week.
type WeekdayMean struct {
	Day  string              `json:"day"`
	Mean decimal.NullDecimal `json:"mean"`
}

// Patterns are the breakdowns added to a context when trends are requested.
type Patterns struct {
	MonthlyTrend         []PeriodSum    `json:"monthly_trend"`
	CategoryDistribution []CategoryStat `json:"category_distribution"`
	DayOfWeek            []WeekdayMean  `json:"day_of_week_pattern"`
}

var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// BuildPatterns computes month sums in chronological order, per-category
// count and sum ordered by category name, and the mean amount per weekday
// from Monday to Sunday. Days without records are left out.
func BuildPatterns(ds *ledger.Dataset) Patterns {
	p := Patterns{
		MonthlyTrend: lo.Map(monthly(ds.Records), func(m MonthStat, _ int) PeriodSum {
			return PeriodSum{Period: m.Period, Sum: m.Sum}
		}),
		CategoryDistribution: []CategoryStat{},
		DayOfWeek:            []WeekdayMean{},
	}

	byCategory := lo.GroupBy(ds.Records, func(r ledger.Record) string { return r.Category })
	categories := lo.Keys(byCategory)
	sort.Strings(categories)
	for _, c := range categories {
		sum, n := total(byCategory[c])
		p.CategoryDistribution = append(p.CategoryDistribution, CategoryStat{Category: c, Count: n, Sum: sum})
	}

	byDay := lo.GroupBy(
		lo.Filter(ds.Records, func(r ledger.Record, _ int) bool { return r.HasDate() }),
		func(r ledger.Record) string { return r.DayOfWeek },
	)
	for _, wd := range weekOrder {
		if recs, ok := byDay[wd.String()]; ok {
			p.DayOfWeek = append(p.DayOfWeek, WeekdayMean{Day: wd.String(), Mean: mean(recs)})
		}
	}

	return p
}
