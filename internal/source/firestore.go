package source

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dvloznov/ledger-qa/internal/ledger"
	"google.golang.org/api/iterator"
)

const (
	DefaultFirestoreCollection = "transactions"
	// DefaultFirestoreLimit applies when no row cap is configured.
	DefaultFirestoreLimit = 500
)

// Firestore reads transaction documents from a collection. Documents use the
// dateValue, mentionText and amount fields; timestamps are accepted as dates.
type Firestore struct {
	Project    string
	Collection string
	UserID     string
	MaxRows    int
}

func (s *Firestore) Name() string {
	return schemeFirestore + s.Project + "/" + s.Collection
}

func (s *Firestore) limit() int {
	if s.MaxRows > 0 {
		return s.MaxRows
	}
	return DefaultFirestoreLimit
}

func (s *Firestore) Rows(ctx context.Context) ([]ledger.RawRow, error) {
	client, err := firestore.NewClient(ctx, s.Project)
	if err != nil {
		return nil, ledger.NewDataLoadError(s.Name(), fmt.Errorf("firestore client: %w", err))
	}
	defer client.Close()

	q := client.Collection(s.Collection).Query
	if s.UserID != "" {
		q = q.Where("userId", "==", s.UserID)
	}

	it := q.Limit(s.limit()).Documents(ctx)
	defer it.Stop()

	var docs []map[string]any
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, ledger.NewDataLoadError(s.Name(), fmt.Errorf("iter next: %w", err))
		}
		docs = append(docs, snap.Data())
	}

	return ledger.RowsFromMaps(docs, s.Name())
}
