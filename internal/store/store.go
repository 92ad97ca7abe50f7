// Package store defines the persistence interface for ingested log records.
package store

import (
	"context"

	"github.com/plantops/kotae/internal/models"
)

// RecordStore defines log record persistence operations. Records are
// read-only to the retrieval core; only ingestion writes them.
type RecordStore interface {
	// InsertBatch stores records in one transaction.
	InsertBatch(ctx context.Context, records []*models.LogRecord) error
	// Get returns one record by its stable identifier.
	Get(ctx context.Context, logID string) (*models.LogRecord, error)
	// GetByIDs returns the records for ids, keyed by log id. Missing ids
	// are simply absent from the result.
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.LogRecord, error)
	// MatchAnyToken returns records whose message, source, or severity
	// contains any token case-insensitively, newest first, at most limit.
	MatchAnyToken(ctx context.Context, tokens []string, limit int) ([]*models.LogRecord, error)
	// Recent returns the newest records, at most limit.
	Recent(ctx context.Context, limit int) ([]*models.LogRecord, error)
	// Count returns the total number of stored records.
	Count(ctx context.Context) (int64, error)

	Close() error
}
