package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/plantops/kotae/internal/models"
)

func sampleResponse() *models.QueryResponse {
	return &models.QueryResponse{
		Answer: "Found 1 relevant log entries.",
		RelevantLogs: []models.RelevantLog{
			{
				LogID:          "log-1",
				Timestamp:      "2026-03-10T14:00:00Z",
				Source:         "PUMP-01",
				Severity:       "CRITICAL",
				Message:        "pressure drop detected",
				RelevanceScore: 0.9123,
			},
		},
		SuggestedFollowup: "Want details?",
	}
}

func TestWriteAnswerText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatalf("WriteAnswer failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Found 1 relevant log entries.",
		"log-1",
		"CRITICAL",
		"0.9123",
		"Followup: Want details?",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteAnswerJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatalf("WriteAnswer failed: %v", err)
	}
	var decoded models.QueryResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON output not parseable: %v", err)
	}
	if decoded.Answer != "Found 1 relevant log entries." || len(decoded.RelevantLogs) != 1 {
		t.Errorf("round trip lost data: %+v", decoded)
	}
}

func TestWriteAnswerTextNoLogs(t *testing.T) {
	var buf bytes.Buffer
	resp := &models.QueryResponse{Answer: "Nothing found.", RelevantLogs: []models.RelevantLog{}}
	if err := WriteAnswer(&buf, resp, OutputText); err != nil {
		t.Fatalf("WriteAnswer failed: %v", err)
	}
	if strings.Contains(buf.String(), "Relevant log entries") {
		t.Error("empty result should not print the log entries section")
	}
}
