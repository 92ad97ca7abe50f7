package models

import (
	"fmt"
	"math"
	"strings"
)

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Question string `json:"question"`
}

// Validate trims the question and rejects empty input.
func (q *QueryRequest) Validate() error {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	return nil
}

// RelevantLog is one evidence row in the query response.
type RelevantLog struct {
	LogID          string  `json:"log_id"`
	Timestamp      string  `json:"timestamp"`
	Source         string  `json:"source"`
	Severity       string  `json:"severity"`
	Message        string  `json:"message"`
	RelevanceScore float64 `json:"relevance_score"`
}

// QueryResponse is the response for a query request. The caller always gets
// this shape unless the question is malformed or embedding is unavailable.
type QueryResponse struct {
	Answer            string        `json:"answer"`
	RelevantLogs      []RelevantLog `json:"relevant_logs"`
	SuggestedFollowup string        `json:"suggested_followup"`
}

// ToRelevantLogs converts hydrated evidence into response rows, rounding
// scores to four decimal places.
func ToRelevantLogs(evidence []Evidence) []RelevantLog {
	logs := make([]RelevantLog, 0, len(evidence))
	for _, ev := range evidence {
		logs = append(logs, RelevantLog{
			LogID:          ev.Record.LogID,
			Timestamp:      FormatTimestamp(ev.Record.Timestamp),
			Source:         ev.Record.Source,
			Severity:       ev.Record.Severity,
			Message:        ev.Record.Message,
			RelevanceScore: roundScore(ev.Score),
		})
	}
	return logs
}

func roundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}
