package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// highValueQuantile is the quantile of absolute amounts above which a record
// counts as high value.
var highValueQuantile = decimal.NewFromFloat(0.9)

// Normalize turns raw rows into a Dataset. A row whose date or amount cannot
// be parsed keeps a null in that field and adds a RowParseWarning; Normalize
// itself never fails.
func Normalize(source string, rows []RawRow) *Dataset {
	ds := &Dataset{
		Source:  source,
		Records: make([]Record, 0, len(rows)),
	}

	for i, raw := range rows {
		rec := Record{
			Row:         i,
			RawDate:     strings.TrimSpace(raw.Date),
			Description: raw.Description,
		}

		if rec.RawDate != "" {
			t, err := time.Parse(DateLayout, rec.RawDate)
			if err != nil {
				ds.Warnings = append(ds.Warnings, RowParseWarning{Row: i, Field: ColumnDate, Value: rec.RawDate, Err: err})
			} else {
				d := civil.DateOf(t)
				rec.ParsedDate = &d
				rec.IsWeekend = isWeekend(t.Weekday())
				rec.DayOfWeek = t.Weekday().String()
				rec.MonthPeriod = monthPeriod(d)
			}
		}

		amount, err := ParseAmount(raw.Amount)
		if err != nil {
			ds.Warnings = append(ds.Warnings, RowParseWarning{Row: i, Field: ColumnAmount, Value: fmt.Sprint(raw.Amount), Err: err})
		}
		rec.Amount = amount
		rec.IsCredit = amount.Valid && amount.Decimal.IsPositive()

		ds.Records = append(ds.Records, rec)
	}

	ds.HighValueThreshold = absQuantile(ds.Records, highValueQuantile)
	if ds.HighValueThreshold.Valid {
		for i := range ds.Records {
			a := ds.Records[i].Amount
			ds.Records[i].IsHighValue = a.Valid && a.Decimal.Abs().GreaterThan(ds.HighValueThreshold.Decimal)
		}
	}

	return ds
}

// ParseAmount coerces a raw amount cell to a decimal. Missing values give a
// null without error; values that are present but not numeric give a null and
// an error.
func ParseAmount(v any) (decimal.NullDecimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.NullDecimal{}, nil
	case decimal.Decimal:
		return decimal.NewNullDecimal(x), nil
	case decimal.NullDecimal:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return decimal.NullDecimal{}, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.NullDecimal{}, fmt.Errorf("non-numeric amount: %w", err)
		}
		return decimal.NewNullDecimal(d), nil
	case float64:
		return fromFloat(x), nil
	case float32:
		return fromFloat(float64(x)), nil
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x))), nil
	case int32:
		return decimal.NewNullDecimal(decimal.NewFromInt32(x)), nil
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(x)), nil
	case json.Number:
		return ParseAmount(x.String())
	case *big.Rat:
		if x == nil {
			return decimal.NullDecimal{}, nil
		}
		return ParseAmount(x.FloatString(9))
	default:
		return decimal.NullDecimal{}, fmt.Errorf("unsupported amount type %T", v)
	}
}

// fromFloat treats NaN and infinities as missing values.
func fromFloat(f float64) decimal.NullDecimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}

// absQuantile returns the q-quantile of absolute amounts using linear
// interpolation between closest ranks.
func absQuantile(records []Record, q decimal.Decimal) decimal.NullDecimal {
	values := lo.FilterMap(records, func(r Record, _ int) (decimal.Decimal, bool) {
		return r.Amount.Decimal.Abs(), r.Amount.Valid
	})
	if len(values) == 0 {
		return decimal.NullDecimal{}
	}
	sort.Slice(values, func(i, j int) bool { return values[i].LessThan(values[j]) })

	pos := q.Mul(decimal.NewFromInt(int64(len(values) - 1)))
	lower := pos.Floor()
	idx := int(lower.IntPart())
	if idx >= len(values)-1 {
		return decimal.NewNullDecimal(values[len(values)-1])
	}
	frac := pos.Sub(lower)
	v := values[idx].Add(values[idx+1].Sub(values[idx]).Mul(frac))
	return decimal.NewNullDecimal(v)
}
