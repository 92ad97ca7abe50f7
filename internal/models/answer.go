package models

// AnswerDraft is the synthesized answer for one query. It is constructed
// fresh per request, never cached, and immutable once returned.
type AnswerDraft struct {
	// Narrative is the answer text shown to the operator.
	Narrative string
	// Followup is one suggested next action.
	Followup string
	// Evidence holds up to three hydrated hits backing the narrative.
	Evidence []Evidence
	// Refined reports whether the narrative came from the language-model
	// refiner rather than the deterministic template. Observability only.
	Refined bool
}
