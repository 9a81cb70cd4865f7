package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force cosine index used in development and tests.
type MemoryIndex struct {
	mu         sync.RWMutex
	partitions map[string]*partition
}

type partition struct {
	entries []Passage
	byPage  map[int]int
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{partitions: make(map[string]*partition)}
}

// Upsert inserts or replaces passages by page.
func (m *MemoryIndex) Upsert(ctx context.Context, name string, passages []Passage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.partitions[name]
	if !ok {
		p = &partition{byPage: make(map[int]int)}
		m.partitions[name] = p
	}
	for _, passage := range passages {
		if len(p.entries) > 0 && len(p.entries[0].Vector) != len(passage.Vector) {
			return fmt.Errorf("%w: partition uses %d, got %d", ErrDimensionMismatch, len(p.entries[0].Vector), len(passage.Vector))
		}
		passage.DocumentID = name
		passage.Vector = append([]float32(nil), passage.Vector...)
		if idx, exists := p.byPage[passage.Page]; exists {
			p.entries[idx] = passage
			continue
		}
		p.byPage[passage.Page] = len(p.entries)
		p.entries = append(p.entries, passage)
	}
	return nil
}

// Query returns up to k passages of the partition closest to vector.
func (m *MemoryIndex) Query(ctx context.Context, name string, vector []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.partitions[name]
	if !ok {
		return nil, nil
	}
	matches := make([]Match, 0, len(p.entries))
	for _, e := range p.entries {
		if len(e.Vector) != len(vector) {
			return nil, fmt.Errorf("%w: partition uses %d, got %d", ErrDimensionMismatch, len(e.Vector), len(vector))
		}
		matches = append(matches, Match{Page: e.Page, Text: e.Text, Score: cosine(vector, e.Vector)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// DeletePartition drops every passage of the partition.
func (m *MemoryIndex) DeletePartition(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.partitions, name)
	m.mu.Unlock()
	return nil
}

// Count returns the number of passages in the partition.
func (m *MemoryIndex) Count(ctx context.Context, name string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.partitions[name]; ok {
		return len(p.entries), nil
	}
	return 0, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Index = (*MemoryIndex)(nil)
