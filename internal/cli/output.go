// Package cli provides CLI utilities for Kotae.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/plantops/kotae/internal/models"
	"github.com/plantops/kotae/pkg/utils"
)

// OutputFormat is the format for answer output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteAnswer writes a query response to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteAnswer(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeAnswerText(w, response)
		return nil
	}
}

func writeAnswerText(w io.Writer, response *models.QueryResponse) {
	fmt.Fprintf(w, "\n%s\n", response.Answer)
	if len(response.RelevantLogs) > 0 {
		fmt.Fprintln(w, "\n--- Relevant log entries ---")
		for i, entry := range response.RelevantLogs {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, entry.RelevanceScore)
			fmt.Fprintf(w, "ID: %s\n", entry.LogID)
			fmt.Fprintf(w, "[%s] %s %s\n", entry.Severity, entry.Timestamp, entry.Source)
			fmt.Fprintf(w, "\n%s\n", utils.Truncate(entry.Message, 200))
		}
	}
	if response.SuggestedFollowup != "" {
		fmt.Fprintf(w, "\nFollowup: %s\n", response.SuggestedFollowup)
	}
	fmt.Fprintln(w)
}
