package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumns is wrapped by a DataLoadError when required columns are absent.
var ErrMissingColumns = errors.New("required columns absent")

// DataLoadError reports a source that could not be read or that lacks one of
// the required columns. It aborts the load.
type DataLoadError struct {
	Source  string
	Missing []string
	Err     error
}

func (e *DataLoadError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("load %s: missing required columns: %s", e.Source, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// NewDataLoadError wraps err as a DataLoadError for source.
func NewDataLoadError(source string, err error) *DataLoadError {
	return &DataLoadError{Source: source, Err: err}
}

func missingColumnsError(source string, missing []string) *DataLoadError {
	return &DataLoadError{Source: source, Missing: missing, Err: ErrMissingColumns}
}

// RowParseWarning records a field of a single row that could not be parsed.
// The field is nulled and loading continues.
type RowParseWarning struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (w RowParseWarning) Error() string {
	return fmt.Sprintf("row %d: %s %q: %v", w.Row, w.Field, w.Value, w.Err)
}

func (w RowParseWarning) Unwrap() error {
	return w.Err
}
