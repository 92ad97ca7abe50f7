// Package answer turns retrieval evidence into a narrative answer, with a
// deterministic template always available and an optional language-model
// refinement pass on top.
package answer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/plantops/kotae/internal/models"
	"github.com/plantops/kotae/internal/refiner"
	"github.com/plantops/kotae/pkg/utils"
)

const (
	// maxEvidence caps how many hits back the returned answer.
	maxEvidence = 3
	// maxPromptEvidence caps how many hits the refiner prompt cites.
	maxPromptEvidence = 8
	// maxPromptMessageLen truncates long messages inside the prompt.
	maxPromptMessageLen = 300

	noResultsNarrative = "I couldn't find relevant log entries for your question. Try rephrasing it or asking about a specific source or severity."
	genericFollowup    = "Would you like to see the most recent log entries instead?"
)

// Synthesizer builds answers from evidence. A nil refiner disables the
// refinement pass entirely.
type Synthesizer struct {
	refiner refiner.Refiner
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewSynthesizer creates a synthesizer. The timeout bounds each refiner call;
// it is ignored when ref is nil.
func NewSynthesizer(ref refiner.Refiner, timeout time.Duration, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		refiner: ref,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Synthesize produces an answer for the question grounded in evidence.
// The deterministic draft is computed first and is the guaranteed floor:
// any refiner failure, timeout, or unusable output falls back to it.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, evidence []models.Evidence) *models.AnswerDraft {
	draft := s.buildDraft(evidence)

	if s.refiner == nil || len(evidence) == 0 {
		return draft
	}

	prompt := s.buildPrompt(question, evidence)
	text, err := s.generateWithRetry(ctx, prompt)
	if err != nil {
		s.logger.Warn("answer refinement failed; using deterministic draft", zap.Error(err))
		return draft
	}

	narrative, followup, ok := ParseSections(text)
	if !ok {
		s.logger.Warn("refiner output unusable; using deterministic draft")
		return draft
	}
	draft.Narrative = narrative
	// A refined narrative that arrives without a followup section gets the
	// generic followup, not the templated draft line it no longer matches.
	draft.Followup = followup
	if draft.Followup == "" {
		draft.Followup = genericFollowup
	}
	draft.Refined = true
	return draft
}

// buildDraft renders the deterministic answer template.
func (s *Synthesizer) buildDraft(evidence []models.Evidence) *models.AnswerDraft {
	if len(evidence) == 0 {
		return &models.AnswerDraft{
			Narrative: noResultsNarrative,
			Followup:  genericFollowup,
			Evidence:  []models.Evidence{},
		}
	}

	top := evidence
	if len(top) > maxEvidence {
		top = top[:maxEvidence]
	}
	lead := top[0].Record

	narrative := fmt.Sprintf(
		"Found %d relevant log entries. The most significant match is %s on %s from %s: %s",
		len(evidence), lead.Severity, models.FormatTimestamp(lead.Timestamp), lead.Source, lead.Message,
	)
	followup := fmt.Sprintf(
		"Would you like more detail on the %s entry from %s?",
		lead.Severity, lead.Source,
	)

	kept := make([]models.Evidence, len(top))
	copy(kept, top)
	return &models.AnswerDraft{
		Narrative: narrative,
		Followup:  followup,
		Evidence:  kept,
	}
}

// buildPrompt assembles the refiner prompt: the question, an aggregate
// summary of the evidence, the cited entries, and the expected output shape.
func (s *Synthesizer) buildPrompt(question string, evidence []models.Evidence) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current date: %s\n\n", s.now().UTC().Format("2006-01-02"))
	b.WriteString("You are an assistant answering questions about equipment logs.\n")
	b.WriteString("Answer only from the log entries below. If they do not answer the question, say so.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString(statsBlock(evidence))
	b.WriteString("\nLog entries:\n")

	cited := evidence
	if len(cited) > maxPromptEvidence {
		cited = cited[:maxPromptEvidence]
	}
	for i, ev := range cited {
		fmt.Fprintf(&b, "%d. [%s] %s %s: %s\n",
			i+1, ev.Record.Severity, models.FormatTimestamp(ev.Record.Timestamp),
			ev.Record.Source, utils.Truncate(ev.Record.Message, maxPromptMessageLen))
	}

	b.WriteString("\nReply with exactly two lines:\n")
	b.WriteString("Answer: <two or three sentences answering the question>\n")
	b.WriteString("Followup: <one suggested followup question>\n")
	return b.String()
}

// statsBlock summarizes the evidence: counts per severity and source, and
// the time span covered. Keys are sorted so the prompt is stable.
func statsBlock(evidence []models.Evidence) string {
	severities := make(map[string]int)
	sources := make(map[string]int)
	earliest := evidence[0].Record.Timestamp
	latest := earliest
	for _, ev := range evidence {
		severities[ev.Record.Severity]++
		sources[ev.Record.Source]++
		if ev.Record.Timestamp.Before(earliest) {
			earliest = ev.Record.Timestamp
		}
		if ev.Record.Timestamp.After(latest) {
			latest = ev.Record.Timestamp
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Matched %d entries spanning %s to %s.\n",
		len(evidence), models.FormatTimestamp(earliest), models.FormatTimestamp(latest))
	fmt.Fprintf(&b, "By severity: %s.\n", countList(severities))
	fmt.Fprintf(&b, "By source: %s.\n", countList(sources))
	return b.String()
}

func countList(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

// generateWithRetry calls the refiner under the configured timeout, retrying
// once on transient failures.
func (s *Synthesizer) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	expo.MaxInterval = 2 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, 1), genCtx)

	return backoff.RetryWithData(func() (string, error) {
		text, err := s.refiner.Generate(genCtx, prompt)
		if err != nil {
			if !refiner.IsTransient(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		return text, nil
	}, policy)
}
