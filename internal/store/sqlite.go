package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/plantops/kotae/internal/models"
)

// SQLiteStore implements RecordStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS log_records (
		log_id TEXT PRIMARY KEY,
		ts TIMESTAMP NOT NULL,
		source TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_log_records_ts ON log_records(ts);
	CREATE INDEX IF NOT EXISTS idx_log_records_severity ON log_records(severity);
	`
	_, err := db.Exec(schema)
	return err
}

// InsertBatch stores records in one transaction.
func (s *SQLiteStore) InsertBatch(ctx context.Context, records []*models.LogRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO log_records (log_id, ts, source, severity, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		rec.CreatedAt = now
		if _, err := stmt.ExecContext(ctx,
			rec.LogID, rec.Timestamp.UTC(), rec.Source, rec.Severity, rec.Message, rec.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Get returns a record by log id.
func (s *SQLiteStore) Get(ctx context.Context, logID string) (*models.LogRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT log_id, ts, source, severity, message, created_at
		 FROM log_records WHERE log_id = ?`, logID,
	))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record not found: %s", logID)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByIDs returns records for the given ids keyed by log id.
func (s *SQLiteStore) GetByIDs(ctx context.Context, ids []string) (map[string]*models.LogRecord, error) {
	result := make(map[string]*models.LogRecord, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT log_id, ts, source, severity, message, created_at
		 FROM log_records WHERE log_id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result[rec.LogID] = rec
	}
	return result, rows.Err()
}

// MatchAnyToken returns records matching any token as a case-insensitive
// substring of message, source, or severity, newest first. The limit bounds
// scan cost on large corpora.
func (s *SQLiteStore) MatchAnyToken(ctx context.Context, tokens []string, limit int) ([]*models.LogRecord, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	var conditions []string
	var args []interface{}
	for _, token := range tokens {
		like := "%" + strings.ToLower(token) + "%"
		conditions = append(conditions,
			"lower(message) LIKE ?", "lower(source) LIKE ?", "lower(severity) LIKE ?")
		args = append(args, like, like, like)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT log_id, ts, source, severity, message, created_at
		 FROM log_records WHERE `+strings.Join(conditions, " OR ")+`
		 ORDER BY ts DESC LIMIT ?`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Recent returns the newest records, at most limit.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*models.LogRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT log_id, ts, source, severity, message, created_at
		 FROM log_records ORDER BY ts DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Count returns the total number of records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM log_records`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.LogRecord, error) {
	var rec models.LogRecord
	if err := row.Scan(&rec.LogID, &rec.Timestamp, &rec.Source, &rec.Severity, &rec.Message, &rec.CreatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*models.LogRecord, error) {
	var records []*models.LogRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

var _ RecordStore = (*SQLiteStore)(nil)
