// Package lexical provides the token-based fallback retriever used when
// semantic retrieval is unavailable.
package lexical

import (
	"context"
	"sort"
	"strings"

	"github.com/plantops/kotae/internal/models"
	"github.com/plantops/kotae/internal/store"
)

const (
	// minTokenLen drops noise words ("a", "is", "the") from matching.
	minTokenLen = 3
	// maxTokens caps how many question tokens participate in matching.
	maxTokens = 8
)

// Retriever matches question tokens against record text fields. Scores are
// deterministic: distinct matching tokens over tokens considered, in [0,1].
type Retriever struct {
	store     store.RecordStore
	scanLimit int
}

// NewRetriever creates a retriever scanning at most scanLimit candidates per query.
func NewRetriever(recordStore store.RecordStore, scanLimit int) *Retriever {
	if scanLimit <= 0 {
		scanLimit = 500
	}
	return &Retriever{store: recordStore, scanLimit: scanLimit}
}

// Tokenize splits the question on whitespace and common punctuation and
// drops tokens shorter than three characters. If nothing survives the filter
// the whole trimmed question becomes a single token, avoiding empty-token
// degeneracy.
func Tokenize(question string) []string {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return nil
	}

	fields := strings.FieldsFunc(q, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', '?', '!', ',', '.', ';', ':', '"', '\'', '(', ')':
			return true
		}
		return false
	})

	var tokens []string
	for _, f := range fields {
		if len(f) >= minTokenLen {
			tokens = append(tokens, f)
		}
	}
	if len(tokens) == 0 {
		tokens = []string{q}
	}
	return tokens
}

// Search returns up to k hits ordered by score descending, ties broken by
// recency (newest record first).
func (r *Retriever) Search(ctx context.Context, question string, k int) ([]models.RetrievalHit, error) {
	tokens := Tokenize(question)
	if len(tokens) == 0 || k <= 0 {
		return []models.RetrievalHit{}, nil
	}
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}

	candidates, err := r.store.MatchAnyToken(ctx, tokens, r.scanLimit)
	if err != nil {
		return nil, err
	}

	// Candidates arrive newest first; the stable sort preserves that order
	// among equal scores.
	hits := make([]models.RetrievalHit, 0, len(candidates))
	for _, rec := range candidates {
		score := scoreRecord(rec, tokens)
		if score <= 0 {
			continue
		}
		hits = append(hits, models.RetrievalHit{
			RecordID:   rec.LogID,
			Score:      score,
			Provenance: models.ProvenanceLexical,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// scoreRecord counts distinct tokens appearing in the record's combined
// source, severity, and message text.
func scoreRecord(rec *models.LogRecord, tokens []string) float64 {
	text := strings.ToLower(rec.Source + " " + rec.Severity + " " + rec.Message)
	matched := 0
	for _, token := range tokens {
		if strings.Contains(text, token) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}
