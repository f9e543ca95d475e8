package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex keeps documents in process. It backs local runs without a vector database.
type MemoryIndex struct {
	mu   sync.RWMutex
	dim  int
	docs map[string]Document
	// keeps insertion order so equal scores are returned deterministically
	order []string
}

// NewMemoryIndex creates an empty in-memory index. A dim of zero accepts any length.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{dim: dim, docs: map[string]Document{}}
}

// Name implements Index.
func (m *MemoryIndex) Name() string { return "memory" }

// Upsert implements Index.
func (m *MemoryIndex) Upsert(_ context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, doc := range docs {
		if m.dim > 0 && len(doc.Embedding) != m.dim {
			return ErrDimensionMismatch
		}
		if _, exists := m.docs[doc.ID]; !exists {
			m.order = append(m.order, doc.ID)
		}
		m.docs[doc.ID] = doc
	}
	return nil
}

// Search implements Index using cosine similarity.
func (m *MemoryIndex) Search(_ context.Context, vector []float32, topK int) ([]Match, error) {
	if m.dim > 0 && len(vector) != m.dim {
		return nil, ErrDimensionMismatch
	}

	m.mu.RLock()
	matches := make([]Match, 0, len(m.order))
	for _, id := range m.order {
		doc := m.docs[id]
		matches = append(matches, Match{Document: doc, Score: cosine(vector, doc.Embedding)})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len returns the number of stored documents.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
