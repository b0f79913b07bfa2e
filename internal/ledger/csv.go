package ledger

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// columnAliases lists, per required column, the header names accepted for it
// in order of preference. Matching is case-insensitive.
var columnAliases = []struct {
	column  string
	aliases []string
}{
	{ColumnDate, []string{"date", "datevalue"}},
	{ColumnDescription, []string{"description", "mentiontext"}},
	{ColumnAmount, []string{"amount", "moneyvalue"}},
}

// ReadCSV reads a header row followed by transaction rows. It fails with a
// DataLoadError when the input cannot be read or a required column is absent
// from the header. Empty description and amount cells are read as missing.
func ReadCSV(r io.Reader, source string) ([]RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, missingColumnsError(source, []string{ColumnDate, ColumnDescription, ColumnAmount})
	}
	if err != nil {
		return nil, NewDataLoadError(source, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idx, missing := resolveColumns(header)
	if len(missing) > 0 {
		return nil, missingColumnsError(source, missing)
	}

	var rows []RawRow
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, NewDataLoadError(source, err)
		}

		row := RawRow{Date: cell(fields, idx[ColumnDate])}
		if desc := cell(fields, idx[ColumnDescription]); desc != "" {
			row.Description = &desc
		}
		if amount := cell(fields, idx[ColumnAmount]); amount != "" {
			row.Amount = amount
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// resolveColumns maps each required column to its index in header.
func resolveColumns(header []string) (map[string]int, []string) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	idx := make(map[string]int, len(columnAliases))
	var missing []string
	for _, c := range columnAliases {
		found := false
		for _, alias := range c.aliases {
			if i, ok := positions[alias]; ok {
				idx[c.column] = i
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, c.column)
		}
	}
	return idx, missing
}

func cell(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}
