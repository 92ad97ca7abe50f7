// Package vecindex owns the dense vector index: a flat inner-product index
// with stable external record identifiers and durable snapshot persistence.
package vecindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDimensionMismatch is returned when vectors do not match the index
// dimension fixed at initialization. This is a deployment fault, not a
// runtime condition to recover from.
var ErrDimensionMismatch = errors.New("vector index dimension mismatch")

// State describes the index lifecycle. There is no transition back to
// StateUninitialized.
type State int

const (
	// StateUninitialized means no vector has been added and the dimension is unknown.
	StateUninitialized State = iota
	// StateInitialized means the dimension is fixed but the index is empty.
	StateInitialized
	// StatePopulated means the index holds at least one vector.
	StatePopulated
)

// Hit is a single vector search result.
type Hit struct {
	RecordID string
	Score    float64 // inner product; cosine similarity for unit vectors
}

// Manager owns the in-memory index, the rowID→recordID map, and the on-disk
// snapshot. It is the only place row-id to record-id translation occurs.
// All access is serialized through one mutex; the backing structure is not
// safe for concurrent add-while-search.
type Manager struct {
	mu sync.Mutex

	dim       int
	rowIDs    []int64
	vectors   [][]float32
	idmap     map[int64]string
	nextRowID int64

	indexPath string
	idmapPath string
}

// NewManager creates an empty manager persisting to the given snapshot paths.
// The dimension is fixed by the first Add (or a successful Load).
func NewManager(indexPath, idmapPath string) *Manager {
	return &Manager{
		idmap:     make(map[int64]string),
		indexPath: indexPath,
		idmapPath: idmapPath,
	}
}

// EnsureIndex fixes the index dimension. Idempotent for a matching d; a
// different d after initialization returns ErrDimensionMismatch.
func (m *Manager) EnsureIndex(d int) error {
	if d <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(d)
}

func (m *Manager) ensureLocked(d int) error {
	if m.dim == 0 {
		m.dim = d
		return nil
	}
	if m.dim != d {
		return fmt.Errorf("%w: index d=%d, got d=%d", ErrDimensionMismatch, m.dim, d)
	}
	return nil
}

// Add appends a batch of vectors, assigning a contiguous block of fresh row
// ids starting at the current high-water mark. Record ids are not
// deduplicated: embedding the same record twice yields two index entries.
func (m *Manager) Add(ctx context.Context, recordIDs []string, vectors [][]float32) error {
	if len(recordIDs) != len(vectors) {
		return fmt.Errorf("recordIDs length %d does not match vectors length %d", len(recordIDs), len(vectors))
	}
	if len(vectors) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLocked(len(vectors[0])); err != nil {
		return err
	}
	for i, vec := range vectors {
		if len(vec) != m.dim {
			return fmt.Errorf("%w: index d=%d, vector %d has d=%d", ErrDimensionMismatch, m.dim, i, len(vec))
		}
	}

	for i, vec := range vectors {
		rowID := m.nextRowID
		m.nextRowID++

		stored := make([]float32, m.dim)
		copy(stored, vec)
		m.rowIDs = append(m.rowIDs, rowID)
		m.vectors = append(m.vectors, stored)
		m.idmap[rowID] = recordIDs[i]
	}
	return nil
}

// Search returns up to k hits ordered by descending inner product. Ties keep
// insertion order. An empty index returns an empty slice, not an error.
func (m *Manager) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.rowIDs) == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: index d=%d, query d=%d", ErrDimensionMismatch, m.dim, len(query))
	}

	type scored struct {
		row   int
		score float64
	}
	scores := make([]scored, len(m.vectors))
	for i, vec := range m.vectors {
		var dot float64
		for j := 0; j < m.dim; j++ {
			dot += float64(query[j] * vec[j])
		}
		scores[i] = scored{row: i, score: dot}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if k > len(scores) {
		k = len(scores)
	}
	hits := make([]Hit, 0, k)
	for _, s := range scores[:k] {
		hits = append(hits, Hit{
			RecordID: m.idmap[m.rowIDs[s.row]],
			Score:    s.score,
		})
	}
	return hits, nil
}

// Size returns the number of vectors in the index.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rowIDs)
}

// Dimensions returns the fixed dimension, or 0 before initialization.
func (m *Manager) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dim
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.dim == 0:
		return StateUninitialized
	case len(m.rowIDs) == 0:
		return StateInitialized
	default:
		return StatePopulated
	}
}
