package selector

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/dvloznov/ledger-qa/internal/question"
	"github.com/shopspring/decimal"
)

// FallbackAnswer is returned when direct-answer mode does not recognise the
// question.
const FallbackAnswer = "I'm sorry, I couldn't understand your question. " +
	"Please ask about totals, counts, or specify a column or type of transaction you want to analyze."

// NoYearsAnswer is returned for a yearly breakdown when no record has a
// parsed date.
const NoYearsAnswer = "Sorry, I couldn't extract years from your data. " +
	"Please ensure the date column is present and formatted as DD/MM/YY."

const yearlyBuckets = 3

// descriptionAmount matches amounts with two decimal places inside free text.
var descriptionAmount = regexp.MustCompile(`[\d,]+\.\d{2}`)

// Options tunes direct answers.
type Options struct {
	// IncludeDescriptionAmounts adds amounts written in descriptions to the
	// sums. Such amounts often repeat the amount field, so this is off unless
	// the data is known to keep them apart.
	IncludeDescriptionAmounts bool
}

// Direct answers narrow, high-confidence questions with a finished sentence.
// It never fails: questions it cannot answer get FallbackAnswer.
func Direct(ds *ledger.Dataset, q string, opts Options) string {
	switch question.DirectIntent(q) {
	case question.IntentTotal:
		return totalAnswer(ds.Records, opts)
	case question.IntentCount:
		return fmt.Sprintf("You have **%s** transactions recorded in your data.\n\n"+
			"Let me know if you want to analyze a specific type or time period!", humanize.Comma(int64(ds.Len())))
	case question.IntentYearly:
		return yearlyAnswer(ds.Records, opts)
	default:
		return FallbackAnswer
	}
}

func totalAnswer(records []ledger.Record, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Based on your transaction records, the total money value is: **%s** INR.\n\n",
		formatRupees(sumRecords(records, opts)))
	if opts.IncludeDescriptionAmounts {
		b.WriteString("This includes all amounts found in both structured and unstructured fields of your data. ")
	} else {
		b.WriteString("This is the sum of the amount field across all of your transactions. ")
	}
	b.WriteString("If you need a breakdown or more details, just ask!")
	return b.String()
}

func yearlyAnswer(records []ledger.Record, opts Options) string {
	byYear := make(map[int][]ledger.Record)
	for _, rec := range records {
		if y, ok := rec.Year(); ok {
			byYear[y] = append(byYear[y], rec)
		}
	}
	if len(byYear) == 0 {
		return NoYearsAnswer
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	if len(years) > yearlyBuckets {
		years = years[:yearlyBuckets]
	}

	lines := make([]string, 0, len(years))
	for _, y := range years {
		lines = append(lines, fmt.Sprintf("%d: **%s** INR", y, formatRupees(sumRecords(byYear[y], opts))))
	}

	return "Here is your spending per year for the last 3 years (from your data):\n\n" +
		strings.Join(lines, "\n") +
		"\n\nLet me know if you want a different breakdown or more details!"
}

// sumRecords adds every numeric amount and, when enabled, amounts found in
// descriptions.
func sumRecords(records []ledger.Record, opts Options) decimal.Decimal {
	sum := decimal.Zero
	for _, rec := range records {
		if rec.Amount.Valid {
			sum = sum.Add(rec.Amount.Decimal)
		}
		if opts.IncludeDescriptionAmounts {
			sum = sum.Add(DescriptionAmounts(rec.DescriptionText()))
		}
	}
	return sum
}

// DescriptionAmounts sums the two-decimal amounts written in text, ignoring
// thousands separators.
func DescriptionAmounts(text string) decimal.Decimal {
	sum := decimal.Zero
	for _, m := range descriptionAmount.FindAllString(text, -1) {
		d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
		if err != nil {
			continue
		}
		sum = sum.Add(d)
	}
	return sum
}

func formatRupees(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}
