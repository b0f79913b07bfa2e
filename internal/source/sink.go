package source

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/firestore"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"github.com/dvloznov/ledger-qa/internal/logger"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"google.golang.org/api/googleapi"
)

// insertBatchSize bounds the rows of one streaming insert.
const insertBatchSize = 500

// Sink stores classified records where a Source can read them back.
type Sink interface {
	Name() string
	Write(ctx context.Context, ds *ledger.Dataset) (int, error)
}

// OpenSink returns the sink addressed by uri. Only bigquery:// and
// firestore:// URIs can be written.
func OpenSink(uri string, opts Options) (Sink, error) {
	src, err := Open(uri, opts)
	if err != nil {
		return nil, err
	}
	sink, ok := src.(Sink)
	if !ok {
		return nil, fmt.Errorf("%s cannot be written to", strings.TrimSpace(uri))
	}
	return sink, nil
}

// RecordID derives a stable document ID from the record position so that
// importing the same file twice overwrites instead of duplicating.
func RecordID(source string, row int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s#%d", source, row)).String()
}

// exportRow is the table layout written by BigQuery.Write. It is a superset
// of transactionRow.
type exportRow struct {
	TransactionID   string              `bigquery:"transaction_id"`
	TransactionDate bigquery.NullDate   `bigquery:"transaction_date"`
	RawDescription  bigquery.NullString `bigquery:"raw_description"`
	Amount          *big.Rat            `bigquery:"amount"`
	TransactionType bigquery.NullString `bigquery:"transaction_type"`
	CategoryName    bigquery.NullString `bigquery:"category_name"`
	CreatedTS       time.Time           `bigquery:"created_ts"`
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func newExportRow(source string, rec ledger.Record, now time.Time) exportRow {
	row := exportRow{
		TransactionID:   RecordID(source, rec.Row),
		RawDescription:  nullString(rec.DescriptionText()),
		TransactionType: nullString(rec.TransactionType),
		CategoryName:    nullString(rec.Category),
		CreatedTS:       now,
	}
	if rec.ParsedDate != nil {
		row.TransactionDate = bigquery.NullDate{Date: *rec.ParsedDate, Valid: true}
	}
	if rec.Amount.Valid {
		row.Amount = rec.Amount.Decimal.Rat()
	}
	return row
}

// Write streams the records into the table, creating it when it does not
// exist. Rows carry insert IDs so retried batches are deduplicated.
func (s *BigQuery) Write(ctx context.Context, ds *ledger.Dataset) (int, error) {
	if s.Project == "" {
		return 0, errors.New("write bigquery: project is required")
	}
	client, err := bigquery.NewClient(ctx, s.Project)
	if err != nil {
		return 0, fmt.Errorf("write bigquery: client: %w", err)
	}
	defer client.Close()

	table := client.DatasetInProject(s.Project, s.Dataset).Table(s.Table)
	if err := ensureTable(ctx, table); err != nil {
		return 0, fmt.Errorf("write bigquery: %w", err)
	}

	now := time.Now().UTC()
	savers := lo.Map(ds.Records, func(rec ledger.Record, _ int) *bigquery.StructSaver {
		row := newExportRow(ds.Source, rec, now)
		return &bigquery.StructSaver{Struct: &row, InsertID: row.TransactionID}
	})

	inserter := table.Inserter()
	written := 0
	for _, batch := range lo.Chunk(savers, insertBatchSize) {
		if err := inserter.Put(ctx, batch); err != nil {
			return written, fmt.Errorf("write bigquery: inserting rows: %w", err)
		}
		written += len(batch)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("table", s.Name()).
		Int("rows", written).
		Msg("Records written to BigQuery")
	return written, nil
}

func ensureTable(ctx context.Context, table *bigquery.Table) error {
	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return fmt.Errorf("table metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(exportRow{})
	if err != nil {
		return fmt.Errorf("infer schema: %w", err)
	}
	if err := table.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("table", table.FullyQualifiedName()).Msg("Created transactions table")
	return nil
}

// document is the Firestore layout written by Firestore.Write. Field names
// match the aliases RowsFromMaps reads.
func document(userID string, rec ledger.Record) map[string]any {
	doc := map[string]any{
		"dateValue":       nil,
		"mentionText":     nil,
		"amount":          nil,
		"transactionType": rec.TransactionType,
		"category":        rec.Category,
	}
	if rec.ParsedDate != nil {
		doc["dateValue"] = rec.ParsedDate.In(time.UTC)
	}
	if rec.Description != nil {
		doc["mentionText"] = *rec.Description
	}
	if rec.Amount.Valid {
		doc["amount"] = rec.Amount.Decimal.String()
	}
	if userID != "" {
		doc["userId"] = userID
	}
	return doc
}

// Write stores one document per record using a bulk writer.
func (s *Firestore) Write(ctx context.Context, ds *ledger.Dataset) (int, error) {
	if s.Project == "" {
		return 0, errors.New("write firestore: project is required")
	}
	client, err := firestore.NewClient(ctx, s.Project)
	if err != nil {
		return 0, fmt.Errorf("write firestore: client: %w", err)
	}
	defer client.Close()

	bw := client.BulkWriter(ctx)
	coll := client.Collection(s.Collection)

	jobs := make([]*firestore.BulkWriterJob, 0, len(ds.Records))
	for _, rec := range ds.Records {
		job, err := bw.Set(coll.Doc(RecordID(ds.Source, rec.Row)), document(s.UserID, rec))
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("write firestore: queue document: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	written := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return written, fmt.Errorf("write firestore: document %d: %w", written, err)
		}
		written++
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("collection", s.Name()).
		Int("documents", written).
		Msg("Records written to Firestore")
	return written, nil
}
