package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/ledger-qa/internal/ledger"
)

// Source supplies the raw rows of a ledger.
type Source interface {
	// Name identifies the source in logs, errors and cache keys.
	Name() string
	Rows(ctx context.Context) ([]ledger.RawRow, error)
}

// Options configure database-backed sources.
type Options struct {
	// MaxRows caps the rows read from BigQuery and Firestore. Zero means no
	// cap for BigQuery and DefaultFirestoreLimit for Firestore.
	MaxRows int
	// UserID filters Firestore documents by their userId field.
	UserID string
}

const (
	schemeGCS       = "gs://"
	schemeBigQuery  = "bigquery://"
	schemeFirestore = "firestore://"
	schemeFile      = "file://"
)

// Open returns the source addressed by uri. Plain paths are CSV files.
// No connection is made until Rows is called.
func Open(uri string, opts Options) (Source, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("empty ledger source")
	}
	if opts.MaxRows < 0 {
		return nil, fmt.Errorf("max rows must not be negative, got %d", opts.MaxRows)
	}

	switch {
	case strings.HasPrefix(uri, schemeGCS):
		bucket, object, err := ParseGCSURI(uri)
		if err != nil {
			return nil, err
		}
		return &GCS{Bucket: bucket, Object: object}, nil

	case strings.HasPrefix(uri, schemeBigQuery):
		parts, err := pathParts(uri, schemeBigQuery, 3, 3)
		if err != nil {
			return nil, err
		}
		return &BigQuery{Project: parts[0], Dataset: parts[1], Table: parts[2], MaxRows: opts.MaxRows}, nil

	case strings.HasPrefix(uri, schemeFirestore):
		parts, err := pathParts(uri, schemeFirestore, 1, 2)
		if err != nil {
			return nil, err
		}
		fs := &Firestore{Project: parts[0], Collection: DefaultFirestoreCollection, UserID: opts.UserID, MaxRows: opts.MaxRows}
		if len(parts) == 2 {
			fs.Collection = parts[1]
		}
		return fs, nil

	default:
		return &CSVFile{Path: strings.TrimPrefix(uri, schemeFile)}, nil
	}
}

// pathParts splits the part of uri after scheme on "/" and checks that it has
// between min and max non-empty segments.
func pathParts(uri, scheme string, min, max int) ([]string, error) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(uri, scheme), "/"), "/")
	if len(parts) < min || len(parts) > max {
		return nil, fmt.Errorf("invalid source URI %q: want %d to %d path segments", uri, min, max)
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, "`'\" ") {
			return nil, fmt.Errorf("invalid source URI %q: bad segment %q", uri, p)
		}
	}
	return parts, nil
}
