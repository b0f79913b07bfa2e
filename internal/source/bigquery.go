package source

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"google.golang.org/api/iterator"
)

// BigQuery reads the transactions table written by the statement ingester.
type BigQuery struct {
	Project string
	Dataset string
	Table   string
	MaxRows int
}

func (s *BigQuery) Name() string {
	return fmt.Sprintf("%s%s/%s/%s", schemeBigQuery, s.Project, s.Dataset, s.Table)
}

// transactionRow is the subset of the transactions schema the ledger needs.
type transactionRow struct {
	TransactionDate bigquery.NullDate   `bigquery:"transaction_date"`
	RawDescription  bigquery.NullString `bigquery:"raw_description"`
	Amount          *big.Rat            `bigquery:"amount"`
}

// Query returns the SQL used to read the table.
func (s *BigQuery) Query() string {
	sql := fmt.Sprintf(
		"SELECT t.transaction_date, t.raw_description, t.amount\nFROM `%s.%s.%s` t\nORDER BY t.transaction_date",
		s.Project, s.Dataset, s.Table)
	if s.MaxRows > 0 {
		sql += "\nLIMIT @limit"
	}
	return sql
}

func (s *BigQuery) Rows(ctx context.Context) ([]ledger.RawRow, error) {
	client, err := bigquery.NewClient(ctx, s.Project)
	if err != nil {
		return nil, ledger.NewDataLoadError(s.Name(), fmt.Errorf("bigquery client: %w", err))
	}
	defer client.Close()

	q := client.Query(s.Query())
	if s.MaxRows > 0 {
		q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: s.MaxRows}}
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, ledger.NewDataLoadError(s.Name(), fmt.Errorf("query read: %w", err))
	}

	var rows []ledger.RawRow
	for {
		var r transactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, ledger.NewDataLoadError(s.Name(), fmt.Errorf("iter next: %w", err))
		}
		rows = append(rows, r.rawRow())
	}
	return rows, nil
}

func (r transactionRow) rawRow() ledger.RawRow {
	var row ledger.RawRow
	if r.TransactionDate.Valid {
		row.Date = r.TransactionDate.Date.In(time.UTC).Format(ledger.DateRenderLayout)
	}
	if r.RawDescription.Valid {
		desc := r.RawDescription.StringVal
		row.Description = &desc
	}
	if r.Amount != nil {
		row.Amount = r.Amount
	}
	return row
}
