// Package vectorindex stores page passages and their embeddings, partitioned
// by document.
package vectorindex

import (
	"context"
	"errors"
)

// Passage is the indexed unit: one physical page of a document.
type Passage struct {
	DocumentID string
	Page       int
	Text       string
	Vector     []float32
}

// Match is a query hit.
type Match struct {
	Page  int
	Text  string
	Score float64
}

// ErrDimensionMismatch is returned when a vector does not match the
// partition's existing vector size.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index is a partitioned nearest-neighbour store. Upsert is keyed by
// (partition, page); an existing key keeps its insertion position. Query
// results are ordered by descending similarity with ties broken by
// insertion order.
type Index interface {
	Upsert(ctx context.Context, partition string, passages []Passage) error
	Query(ctx context.Context, partition string, vector []float32, k int) ([]Match, error)
	DeletePartition(ctx context.Context, partition string) error
	Count(ctx context.Context, partition string) (int, error)
}
