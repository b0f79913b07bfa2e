package ledger

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const (
	// DateLayout parses raw dates as day/month/two-digit-year. Single-digit
	// days and months are accepted.
	DateLayout = "2/1/06"

	// DateRenderLayout is used when a source hands over typed dates that must be
	// rendered back into the raw format.
	DateRenderLayout = "02/01/06"
)

// Column names every source must provide.
const (
	ColumnDate        = "date"
	ColumnDescription = "description"
	ColumnAmount      = "amount"
)

// RawRow is one untyped row as supplied by a data source.
// Amount may be a string, any Go number, a decimal, or a *big.Rat.
type RawRow struct {
	Date        string
	Description *string
	Amount      any
}

// Record is one normalized transaction.
type Record struct {
	// Row is the 0-based position of the record in the source.
	Row int `json:"row"`

	RawDate    string      `json:"raw_date"`
	ParsedDate *civil.Date `json:"parsed_date"`

	Description *string             `json:"description"`
	Amount      decimal.NullDecimal `json:"amount"`

	// TransactionType and Category are empty until the record is classified.
	TransactionType string `json:"transaction_type"`
	Category        string `json:"category"`

	IsCredit    bool   `json:"is_credit"`
	IsWeekend   bool   `json:"is_weekend"`
	IsHighValue bool   `json:"is_high_value"`
	DayOfWeek   string `json:"day_of_week,omitempty"`

	// MonthPeriod is the "YYYY-MM" key of ParsedDate, empty when the date is null.
	MonthPeriod string `json:"month_period,omitempty"`
}

// HasDate reports whether the raw date parsed.
func (r Record) HasDate() bool {
	return r.ParsedDate != nil
}

// HasAmount reports whether the amount is numeric.
func (r Record) HasAmount() bool {
	return r.Amount.Valid
}

// Year returns the year of the parsed date.
func (r Record) Year() (int, bool) {
	if r.ParsedDate == nil {
		return 0, false
	}
	return r.ParsedDate.Year, true
}

// DescriptionText returns the description or "" when it is null.
func (r Record) DescriptionText() string {
	if r.Description == nil {
		return ""
	}
	return *r.Description
}

// Clone returns a copy of r that shares no memory with it.
func (r Record) Clone() Record {
	if r.ParsedDate != nil {
		d := *r.ParsedDate
		r.ParsedDate = &d
	}
	if r.Description != nil {
		s := *r.Description
		r.Description = &s
	}
	return r
}

// CloneRecords deep-copies records. The result is never nil.
func CloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// Dataset is an ordered collection of records in source order.
// A Dataset is not modified after it is built; transformations return a new one.
type Dataset struct {
	Source   string            `json:"source"`
	Records  []Record          `json:"records"`
	Warnings []RowParseWarning `json:"-"`

	// HighValueThreshold is the 90th percentile of absolute amounts.
	HighValueThreshold decimal.NullDecimal `json:"high_value_threshold"`
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// WithRecords returns a copy of the dataset holding records instead of the
// current ones. Warnings and derived thresholds are kept.
func (d *Dataset) WithRecords(records []Record) *Dataset {
	out := *d
	out.Records = records
	return &out
}

// monthPeriod formats the year-month key of a date.
func monthPeriod(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

func isWeekend(wd time.Weekday) bool {
	return wd == time.Saturday || wd == time.Sunday
}
