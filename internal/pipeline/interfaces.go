package pipeline

import (
	"context"

	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/dvloznov/ledger-qa/internal/selector"
)

// RowSource supplies the raw rows of a ledger. Name identifies the source in
// logs and load errors.
type RowSource interface {
	Name() string
	Rows(ctx context.Context) ([]ledger.RawRow, error)
}

// Analyzer turns a context payload into a natural-language answer.
// This interface enables mocking of the downstream generator.
type Analyzer interface {
	Analyze(ctx context.Context, payload selector.Payload) (string, error)
}
