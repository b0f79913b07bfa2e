package source

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/ledger-qa/internal/ledger"
)

// CSVFile reads a ledger from a local CSV file.
type CSVFile struct {
	Path string
}

func (s *CSVFile) Name() string { return s.Path }

func (s *CSVFile) Rows(ctx context.Context) ([]ledger.RawRow, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, ledger.NewDataLoadError(s.Path, fmt.Errorf("open file: %w", err))
	}
	defer f.Close()

	return ledger.ReadCSV(f, s.Path)
}
