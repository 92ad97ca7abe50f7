// Package models defines core data structures for log records, retrieval hits, and answers.
package models

import (
	"strings"
	"time"
)

// LogRecord is one ingested equipment log entry. LogID is the stable public
// identifier; it is unique and never reused.
type LogRecord struct {
	LogID     string    `json:"log_id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordInput is the input for ingesting a log record.
type RecordInput struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
}

// Severities accepted as-is; anything else normalizes to INFO.
var allowedSeverities = map[string]bool{
	"INFO": true, "WARNING": true, "ERROR": true, "CRITICAL": true,
	"LOW": true, "MEDIUM": true, "HIGH": true,
}

// NormalizeSeverity uppercases the severity and maps unknown values to INFO.
func NormalizeSeverity(raw string) string {
	sev := strings.ToUpper(strings.TrimSpace(raw))
	if sev == "" || !allowedSeverities[sev] {
		return "INFO"
	}
	return sev
}

// NormalizeSource trims the source label and maps empty values to UNKNOWN.
func NormalizeSource(raw string) string {
	src := strings.TrimSpace(raw)
	if src == "" {
		return "UNKNOWN"
	}
	return src
}

// FormatTimestamp renders t as an ISO 8601 UTC instant with a trailing "Z",
// second precision, matching the wire contract for relevant_logs.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05") + "Z"
}
