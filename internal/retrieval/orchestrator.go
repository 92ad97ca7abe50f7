// Package retrieval sequences embedding, vector search, fallback decision,
// and hit ranking under per-stage timeouts.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/plantops/kotae/internal/config"
	"github.com/plantops/kotae/internal/embedding"
	"github.com/plantops/kotae/internal/models"
	"github.com/plantops/kotae/internal/store"
	"github.com/plantops/kotae/internal/vecindex"
)

var (
	// ErrEmptyQuestion rejects questions that are empty after trimming.
	ErrEmptyQuestion = errors.New("question cannot be empty")
	// ErrRetrievalUnavailable wraps embedding stage failures. Without a
	// query vector there is no semantic path; degrading silently to
	// lexical-only here would mask provider outages.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)

// VectorSearcher is the index search surface the orchestrator needs.
// *vecindex.Manager implements it.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, k int) ([]vecindex.Hit, error)
	Size() int
}

// FallbackRetriever is the lexical path. *lexical.Retriever implements it.
type FallbackRetriever interface {
	Search(ctx context.Context, question string, k int) ([]models.RetrievalHit, error)
}

// Outcome is the result of one retrieval, decided once per request: either
// the vector branch or the lexical branch, never both.
type Outcome struct {
	// Provenance tags which path produced the evidence.
	Provenance models.Provenance
	// Evidence is the ranked, hydrated grounding set (up to GroundingK).
	Evidence []models.Evidence
	// FallbackUsed reports whether the lexical path substituted for a
	// failed or slow vector search. Observability only.
	FallbackUsed bool
}

// Top returns the first n evidence rows for the response surface.
func (o *Outcome) Top(n int) []models.Evidence {
	if n > len(o.Evidence) {
		n = len(o.Evidence)
	}
	return o.Evidence[:n]
}

// Orchestrator runs the retrieval pipeline for one question at a time.
// Concurrent requests interleave freely except on the index lock.
type Orchestrator struct {
	provider embedding.Provider
	index    VectorSearcher
	fallback FallbackRetriever
	records  store.RecordStore
	cfg      *config.RetrievalConfig
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator with the given dependencies.
func NewOrchestrator(
	provider embedding.Provider,
	index VectorSearcher,
	fallback FallbackRetriever,
	records store.RecordStore,
	cfg *config.RetrievalConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		index:    index,
		fallback: fallback,
		records:  records,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve turns a question into a ranked, hydrated evidence set.
//
// The embedding stage is bounded but not degraded: its failure surfaces as
// ErrRetrievalUnavailable. The vector search stage is bounded and degraded:
// timeout or error switches silently to the lexical fallback. Zero hits from
// either path yield an empty outcome, not an error.
func (o *Orchestrator) Retrieve(ctx context.Context, question string) (*Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	start := time.Now()
	queryVec, err := o.embedQuestion(ctx, question)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("question embedded",
		zap.Duration("embed_time", time.Since(start)),
		zap.Int("dimensions", len(queryVec)))

	hits, fallbackUsed := o.searchWithFallback(ctx, question, queryVec)

	provenance := models.ProvenanceVector
	if fallbackUsed {
		provenance = models.ProvenanceLexical
	}

	hits = dedupeByRecordID(hits)
	if len(hits) > o.cfg.GroundingK {
		hits = hits[:o.cfg.GroundingK]
	}

	evidence, err := o.hydrate(ctx, hits)
	if err != nil {
		// Hydration failure leaves nothing to ground an answer on; treat
		// it like an empty result rather than failing the request.
		o.logger.Warn("hit hydration failed", zap.Error(err))
		evidence = []models.Evidence{}
	}

	o.logger.Info("retrieval complete",
		zap.Duration("total_time", time.Since(start)),
		zap.Int("hits", len(evidence)),
		zap.Bool("fallback", fallbackUsed))

	return &Outcome{
		Provenance:   provenance,
		Evidence:     evidence,
		FallbackUsed: fallbackUsed,
	}, nil
}

func (o *Orchestrator) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, o.cfg.EmbedTimeout())
	defer cancel()

	vectors, err := o.provider.EmbedBatch(embedCtx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", errors.Join(ErrRetrievalUnavailable, err))
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed question: %w", errors.Join(ErrRetrievalUnavailable,
			fmt.Errorf("provider returned %d vectors for 1 input", len(vectors))))
	}
	return vectors[0], nil
}

// searchWithFallback runs the vector search on a worker goroutine under its
// own budget. Timeout or error switches to the lexical path, silently to the
// caller. The goroutine never holds the index lock across the cancellation:
// an abandoned search finishes on its own and its buffered result is dropped.
func (o *Orchestrator) searchWithFallback(ctx context.Context, question string, queryVec []float32) ([]models.RetrievalHit, bool) {
	searchCtx, cancel := context.WithTimeout(ctx, o.cfg.SearchTimeout())
	defer cancel()

	type searchResult struct {
		hits []vecindex.Hit
		err  error
	}
	resultCh := make(chan searchResult, 1)
	go func() {
		hits, err := o.index.Search(searchCtx, queryVec, o.cfg.CandidateK)
		resultCh <- searchResult{hits: hits, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err == nil {
			hits := make([]models.RetrievalHit, 0, len(res.hits))
			for _, h := range res.hits {
				hits = append(hits, models.RetrievalHit{
					RecordID:   h.RecordID,
					Score:      h.Score,
					Provenance: models.ProvenanceVector,
				})
			}
			return hits, false
		}
		o.logger.Warn("vector search failed; using lexical fallback", zap.Error(res.err))
	case <-searchCtx.Done():
		o.logger.Warn("vector search timed out; using lexical fallback",
			zap.Duration("budget", o.cfg.SearchTimeout()))
	}

	hits, err := o.fallback.Search(ctx, question, o.cfg.CandidateK)
	if err != nil {
		o.logger.Warn("lexical fallback failed; returning no hits", zap.Error(err))
		return []models.RetrievalHit{}, true
	}
	return hits, true
}

// dedupeByRecordID keeps the first (highest-ranked) hit per record id, so a
// record embedded twice by re-ingestion cannot appear as duplicate evidence.
func dedupeByRecordID(hits []models.RetrievalHit) []models.RetrievalHit {
	seen := make(map[string]bool, len(hits))
	out := hits[:0]
	for _, h := range hits {
		if seen[h.RecordID] {
			continue
		}
		seen[h.RecordID] = true
		out = append(out, h)
	}
	return out
}

// hydrate resolves hits into full records, preserving hit order and skipping
// ids the store no longer knows.
func (o *Orchestrator) hydrate(ctx context.Context, hits []models.RetrievalHit) ([]models.Evidence, error) {
	if len(hits) == 0 {
		return []models.Evidence{}, nil
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.RecordID)
	}
	byID, err := o.records.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	evidence := make([]models.Evidence, 0, len(hits))
	for _, h := range hits {
		rec, ok := byID[h.RecordID]
		if !ok {
			continue
		}
		evidence = append(evidence, models.Evidence{
			Record:     rec,
			Score:      h.Score,
			Provenance: h.Provenance,
		})
	}
	return evidence, nil
}
