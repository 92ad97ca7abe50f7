package models

// Provenance tags which retrieval path produced a hit.
type Provenance string

const (
	// ProvenanceVector marks hits from the semantic (vector index) path.
	ProvenanceVector Provenance = "vector"
	// ProvenanceLexical marks hits from the lexical fallback path.
	ProvenanceLexical Provenance = "lexical"
)

// RetrievalHit is a single retrieval result before hydration.
// Score is monotonic within one provenance: inner product for vector hits,
// token match ratio in [0,1] for lexical hits.
type RetrievalHit struct {
	RecordID   string
	Score      float64
	Provenance Provenance
}

// Evidence is a retrieval hit hydrated into its full log record.
type Evidence struct {
	Record     *LogRecord
	Score      float64
	Provenance Provenance
}
