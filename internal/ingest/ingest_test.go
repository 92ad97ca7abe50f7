package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/plantops/kotae/internal/embedding"
	"github.com/plantops/kotae/internal/models"
)

type captureStore struct {
	inserted []*models.LogRecord
	err      error
}

func (c *captureStore) InsertBatch(_ context.Context, records []*models.LogRecord) error {
	if c.err != nil {
		return c.err
	}
	c.inserted = append(c.inserted, records...)
	return nil
}
func (c *captureStore) Get(context.Context, string) (*models.LogRecord, error) { return nil, nil }
func (c *captureStore) GetByIDs(context.Context, []string) (map[string]*models.LogRecord, error) {
	return nil, nil
}
func (c *captureStore) MatchAnyToken(context.Context, []string, int) ([]*models.LogRecord, error) {
	return nil, nil
}
func (c *captureStore) Recent(context.Context, int) ([]*models.LogRecord, error) { return nil, nil }
func (c *captureStore) Count(context.Context) (int64, error)                     { return 0, nil }
func (c *captureStore) Close() error                                             { return nil }

type captureIndex struct {
	ids       []string
	vectors   [][]float32
	persisted bool
	addErr    error
}

func (c *captureIndex) Add(_ context.Context, ids []string, vectors [][]float32) error {
	if c.addErr != nil {
		return c.addErr
	}
	c.ids = append(c.ids, ids...)
	c.vectors = append(c.vectors, vectors...)
	return nil
}
func (c *captureIndex) Persist() error {
	c.persisted = true
	return nil
}

func newTestService(st *captureStore, idx *captureIndex) *Service {
	return NewService(st, embedding.NewMockProvider(32), idx, zap.NewNop())
}

func TestIngestRecordsEndToEnd(t *testing.T) {
	st := &captureStore{}
	idx := &captureIndex{}
	svc := newTestService(st, idx)

	ts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	records, err := svc.IngestRecords(context.Background(), []models.RecordInput{
		{Timestamp: ts, Source: "pump-01", Severity: "critical", Message: "pressure drop"},
		{Timestamp: ts, Source: "", Severity: "bogus", Message: "valve closed"},
	})
	if err != nil {
		t.Fatalf("IngestRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if records[0].LogID == "" || records[0].LogID == records[1].LogID {
		t.Error("expected unique non-empty log ids")
	}
	if records[0].Severity != "CRITICAL" {
		t.Errorf("severity not normalized: %s", records[0].Severity)
	}
	if records[1].Severity != "INFO" {
		t.Errorf("unknown severity not mapped to INFO: %s", records[1].Severity)
	}
	if records[1].Source != "UNKNOWN" {
		t.Errorf("blank source not mapped to UNKNOWN: %s", records[1].Source)
	}

	if len(st.inserted) != 2 {
		t.Errorf("expected 2 stored records, got %d", len(st.inserted))
	}
	if len(idx.ids) != 2 || len(idx.vectors) != 2 {
		t.Errorf("expected 2 indexed vectors, got %d/%d", len(idx.ids), len(idx.vectors))
	}
	if idx.ids[0] != records[0].LogID {
		t.Error("index ids do not match stored record ids")
	}
	if !idx.persisted {
		t.Error("index not persisted after ingest")
	}
}

func TestIngestRecordsDefaultsTimestamp(t *testing.T) {
	st := &captureStore{}
	svc := newTestService(st, &captureIndex{})

	before := time.Now().UTC()
	records, err := svc.IngestRecords(context.Background(), []models.RecordInput{
		{Source: "PUMP-01", Severity: "INFO", Message: "no timestamp"},
	})
	if err != nil {
		t.Fatalf("IngestRecords failed: %v", err)
	}
	if records[0].Timestamp.Before(before.Add(-time.Second)) {
		t.Errorf("expected current timestamp default, got %v", records[0].Timestamp)
	}
}

func TestIngestRecordsEmptyInput(t *testing.T) {
	idx := &captureIndex{}
	svc := newTestService(&captureStore{}, idx)

	records, err := svc.IngestRecords(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty ingest failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
	if idx.persisted {
		t.Error("empty ingest must not touch the index")
	}
}

func TestIngestRecordsStoreFailureStopsPipeline(t *testing.T) {
	st := &captureStore{err: errors.New("disk full")}
	idx := &captureIndex{}
	svc := newTestService(st, idx)

	_, err := svc.IngestRecords(context.Background(), []models.RecordInput{
		{Source: "PUMP-01", Severity: "INFO", Message: "msg"},
	})
	if err == nil {
		t.Fatal("expected error from store failure")
	}
	if len(idx.ids) != 0 || idx.persisted {
		t.Error("index must not be touched when store write fails")
	}
}

func TestEmbeddingText(t *testing.T) {
	rec := &models.LogRecord{Source: "PUMP-01", Severity: "CRITICAL", Message: "pressure drop"}
	if got := EmbeddingText(rec); got != "[CRITICAL] PUMP-01: pressure drop" {
		t.Errorf("EmbeddingText = %q", got)
	}
}
