package answer

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/plantops/kotae/internal/models"
	"github.com/plantops/kotae/internal/refiner"
)

type fakeRefiner struct {
	calls  atomic.Int32
	output string
	errs   []error
	block  bool
}

func (f *fakeRefiner) Generate(ctx context.Context, _ string) (string, error) {
	n := int(f.calls.Add(1))
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return "", f.errs[n-1]
	}
	return f.output, nil
}

func evidenceSet(n int) []models.Evidence {
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	out := make([]models.Evidence, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Evidence{
			Record: &models.LogRecord{
				LogID:     "log-" + string(rune('a'+i)),
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				Source:    "PUMP-01",
				Severity:  "CRITICAL",
				Message:   "pressure drop detected",
			},
			Score:      0.9 - float64(i)*0.1,
			Provenance: models.ProvenanceVector,
		})
	}
	return out
}

func TestSynthesizeNoEvidence(t *testing.T) {
	s := NewSynthesizer(nil, time.Second, zap.NewNop())
	draft := s.Synthesize(context.Background(), "any alerts?", nil)

	if !strings.Contains(draft.Narrative, "couldn't find relevant log entries") {
		t.Errorf("expected no-results narrative, got %q", draft.Narrative)
	}
	if draft.Followup == "" {
		t.Error("expected a followup even with no evidence")
	}
	if draft.Refined {
		t.Error("no-evidence draft must not be marked refined")
	}
}

func TestSynthesizeDeterministicDraft(t *testing.T) {
	s := NewSynthesizer(nil, time.Second, zap.NewNop())
	evidence := evidenceSet(5)

	draft := s.Synthesize(context.Background(), "any alerts?", evidence)
	if !strings.Contains(draft.Narrative, "Found 5 relevant log entries") {
		t.Errorf("unexpected narrative: %q", draft.Narrative)
	}
	if !strings.Contains(draft.Narrative, "CRITICAL") || !strings.Contains(draft.Narrative, "PUMP-01") {
		t.Errorf("narrative missing lead record fields: %q", draft.Narrative)
	}
	if len(draft.Evidence) != 3 {
		t.Errorf("expected evidence capped at 3, got %d", len(draft.Evidence))
	}
	if draft.Refined {
		t.Error("deterministic draft must not be marked refined")
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	s := NewSynthesizer(nil, time.Second, zap.NewNop())
	evidence := evidenceSet(2)

	a := s.Synthesize(context.Background(), "any alerts?", evidence)
	b := s.Synthesize(context.Background(), "any alerts?", evidence)
	if a.Narrative != b.Narrative || a.Followup != b.Followup {
		t.Error("identical inputs produced different drafts")
	}
}

func TestSynthesizeRefinedOutput(t *testing.T) {
	ref := &fakeRefiner{output: "Answer: Two critical pressure alerts on PUMP-01.\nFollowup: Check the pump seals?"}
	s := NewSynthesizer(ref, time.Second, zap.NewNop())

	draft := s.Synthesize(context.Background(), "any alerts?", evidenceSet(2))
	if !draft.Refined {
		t.Fatal("expected refined draft")
	}
	if draft.Narrative != "Two critical pressure alerts on PUMP-01." {
		t.Errorf("unexpected narrative: %q", draft.Narrative)
	}
	if draft.Followup != "Check the pump seals?" {
		t.Errorf("unexpected followup: %q", draft.Followup)
	}
}

func TestSynthesizeMarkerFreeOutputGetsGenericFollowup(t *testing.T) {
	ref := &fakeRefiner{output: "Two critical pressure alerts were logged on PUMP-01 within a minute."}
	s := NewSynthesizer(ref, time.Second, zap.NewNop())

	draft := s.Synthesize(context.Background(), "any alerts?", evidenceSet(2))
	if !draft.Refined {
		t.Fatal("expected refined draft for marker-free output")
	}
	if draft.Narrative != "Two critical pressure alerts were logged on PUMP-01 within a minute." {
		t.Errorf("unexpected narrative: %q", draft.Narrative)
	}
	if draft.Followup != genericFollowup {
		t.Errorf("expected generic followup, got %q", draft.Followup)
	}
}

func TestSynthesizeAnswerOnlyOutputGetsGenericFollowup(t *testing.T) {
	ref := &fakeRefiner{output: "Answer: All pressure readings are back to nominal."}
	s := NewSynthesizer(ref, time.Second, zap.NewNop())

	draft := s.Synthesize(context.Background(), "any alerts?", evidenceSet(1))
	if !draft.Refined {
		t.Fatal("expected refined draft")
	}
	if draft.Followup != genericFollowup {
		t.Errorf("expected generic followup when the followup section is missing, got %q", draft.Followup)
	}
}

func TestSynthesizeRetriesOnceOnTransientFailure(t *testing.T) {
	ref := &fakeRefiner{
		errs:   []error{errors.New("connection reset")},
		output: "Answer: All clear.\nFollowup: Anything else?",
	}
	s := NewSynthesizer(ref, 5*time.Second, zap.NewNop())

	draft := s.Synthesize(context.Background(), "any alerts?", evidenceSet(1))
	if got := ref.calls.Load(); got != 2 {
		t.Errorf("expected 2 generate calls, got %d", got)
	}
	if !draft.Refined {
		t.Error("expected refined draft after retry")
	}
}

func TestSynthesizeNoRetryOnPermanentFailure(t *testing.T) {
	ref := &fakeRefiner{
		errs: []error{&openai.Error{StatusCode: 400}, &openai.Error{StatusCode: 400}},
	}
	s := NewSynthesizer(ref, 5*time.Second, zap.NewNop())

	draft := s.Synthesize(context.Background(), "any alerts?", evidenceSet(1))
	if got := ref.calls.Load(); got != 1 {
		t.Errorf("expected 1 generate call for permanent failure, got %d", got)
	}
	if draft.Refined {
		t.Error("expected deterministic draft after permanent failure")
	}
	if draft.Narrative == "" {
		t.Error("draft narrative must survive refiner failure")
	}
}

func TestSynthesizeNoRetryOnEmptyCompletion(t *testing.T) {
	ref := &fakeRefiner{
		errs: []error{refiner.ErrNoCompletion, refiner.ErrNoCompletion},
	}
	s := NewSynthesizer(ref, 5*time.Second, zap.NewNop())

	draft := s.Synthesize(context.Background(), "any alerts?", evidenceSet(1))
	if got := ref.calls.Load(); got != 1 {
		t.Errorf("expected 1 generate call for an empty completion, got %d", got)
	}
	if draft.Refined {
		t.Error("expected deterministic draft after empty completion")
	}
}

func TestSynthesizeTimeoutFallsBackToDraft(t *testing.T) {
	ref := &fakeRefiner{block: true}
	s := NewSynthesizer(ref, 50*time.Millisecond, zap.NewNop())

	draft := s.Synthesize(context.Background(), "any alerts?", evidenceSet(1))
	if draft.Refined {
		t.Error("expected deterministic draft after refiner timeout")
	}
	if !strings.Contains(draft.Narrative, "Found 1 relevant log entries") {
		t.Errorf("unexpected fallback narrative: %q", draft.Narrative)
	}
}

func TestSynthesizeBlankRefinerOutputFallsBack(t *testing.T) {
	ref := &fakeRefiner{output: "   "}
	s := NewSynthesizer(ref, time.Second, zap.NewNop())

	draft := s.Synthesize(context.Background(), "any alerts?", evidenceSet(1))
	if draft.Refined {
		t.Error("blank refiner output must not be marked refined")
	}
	if draft.Narrative == "" {
		t.Error("expected deterministic narrative")
	}
}

func TestSynthesizeSkipsRefinerWithoutEvidence(t *testing.T) {
	ref := &fakeRefiner{output: "Answer: something.\nFollowup: more?"}
	s := NewSynthesizer(ref, time.Second, zap.NewNop())

	s.Synthesize(context.Background(), "any alerts?", nil)
	if got := ref.calls.Load(); got != 0 {
		t.Errorf("refiner must not run without evidence, got %d calls", got)
	}
}

func TestBuildPromptContents(t *testing.T) {
	s := NewSynthesizer(nil, time.Second, zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }

	prompt := s.buildPrompt("any pump alerts?", evidenceSet(2))
	for _, want := range []string{
		"2026-03-10",
		"any pump alerts?",
		"By severity: CRITICAL 2.",
		"By source: PUMP-01 2.",
		"Answer:",
		"Followup:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
