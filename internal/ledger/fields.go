package ledger

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// RowsFromMaps converts document-shaped records (for example Firestore
// documents or decoded JSON objects) into raw rows. Field names follow the
// same aliases as CSV headers. A required column absent from every document
// is a DataLoadError; a column absent from some documents is read as missing.
func RowsFromMaps(docs []map[string]any, source string) ([]RawRow, error) {
	if len(docs) > 0 {
		var missing []string
		for _, c := range columnAliases {
			present := false
			for _, doc := range docs {
				if _, ok := lookupField(doc, c.aliases); ok {
					present = true
					break
				}
			}
			if !present {
				missing = append(missing, c.column)
			}
		}
		if len(missing) > 0 {
			return nil, missingColumnsError(source, missing)
		}
	}

	rows := make([]RawRow, 0, len(docs))
	for _, doc := range docs {
		var row RawRow
		if v, ok := lookupField(doc, aliasesOf(ColumnDate)); ok {
			row.Date = dateField(v)
		}
		if v, ok := lookupField(doc, aliasesOf(ColumnDescription)); ok {
			row.Description = optionalStringField(v)
		}
		if v, ok := lookupField(doc, aliasesOf(ColumnAmount)); ok {
			row.Amount = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func aliasesOf(column string) []string {
	for _, c := range columnAliases {
		if c.column == column {
			return c.aliases
		}
	}
	return []string{column}
}

// lookupField finds the first alias present in m, comparing keys
// case-insensitively.
func lookupField(m map[string]any, aliases []string) (any, bool) {
	for _, alias := range aliases {
		for k, v := range m {
			if strings.EqualFold(k, alias) {
				return v, true
			}
		}
	}
	return nil, false
}

// dateField renders typed dates in the raw day/month/year format so that
// every source goes through the same date parsing.
func dateField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case time.Time:
		return val.Format(DateRenderLayout)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.Format(DateRenderLayout)
	case civil.Date:
		return val.In(time.UTC).Format(DateRenderLayout)
	default:
		return fmt.Sprint(v)
	}
}

func optionalStringField(v any) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		return &s
	default:
		s := fmt.Sprint(v)
		return &s
	}
}
