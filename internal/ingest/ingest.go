// Package ingest normalizes, stores, and indexes incoming log records.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plantops/kotae/internal/embedding"
	"github.com/plantops/kotae/internal/models"
	"github.com/plantops/kotae/internal/store"
)

// VectorIndex is the index surface ingestion needs. *vecindex.Manager
// implements it.
type VectorIndex interface {
	Add(ctx context.Context, recordIDs []string, vectors [][]float32) error
	Persist() error
}

// Service ingests log records: normalize fields, assign ids, persist to the
// store, embed, and index. The store write commits before embedding so a
// provider outage cannot lose records; the index catches up on re-ingestion.
type Service struct {
	store    store.RecordStore
	provider embedding.Provider
	index    VectorIndex
	logger   *zap.Logger
}

// NewService creates an ingestion service.
func NewService(recordStore store.RecordStore, provider embedding.Provider, index VectorIndex, logger *zap.Logger) *Service {
	return &Service{
		store:    recordStore,
		provider: provider,
		index:    index,
		logger:   logger,
	}
}

// EmbeddingText renders the text embedded for a record. Severity and source
// are folded in so questions like "any critical pump alerts" match on more
// than the message body.
func EmbeddingText(rec *models.LogRecord) string {
	return fmt.Sprintf("[%s] %s: %s", rec.Severity, rec.Source, rec.Message)
}

// IngestRecords processes a batch end to end and returns the stored records
// with their assigned ids.
func (s *Service) IngestRecords(ctx context.Context, inputs []models.RecordInput) ([]*models.LogRecord, error) {
	if len(inputs) == 0 {
		return []*models.LogRecord{}, nil
	}

	start := time.Now()
	records := make([]*models.LogRecord, 0, len(inputs))
	for _, in := range inputs {
		ts := in.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		records = append(records, &models.LogRecord{
			LogID:     uuid.NewString(),
			Timestamp: ts.UTC(),
			Source:    models.NormalizeSource(in.Source),
			Severity:  models.NormalizeSeverity(in.Severity),
			Message:   in.Message,
		})
	}

	if err := s.store.InsertBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("store records: %w", err)
	}

	texts := make([]string, len(records))
	ids := make([]string, len(records))
	for i, rec := range records {
		texts[i] = EmbeddingText(rec)
		ids[i] = rec.LogID
	}

	vectors, err := s.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed records: %w", err)
	}
	if err := s.index.Add(ctx, ids, vectors); err != nil {
		return nil, fmt.Errorf("index records: %w", err)
	}
	if err := s.index.Persist(); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}

	s.logger.Info("records ingested",
		zap.Int("count", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return records, nil
}
