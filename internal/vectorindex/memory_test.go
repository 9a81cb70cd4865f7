package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryIndexQueryRestrictsToPartition(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "doc-a", []Passage{
		{Page: 1, Text: "a1", Vector: []float32{1, 0}},
		{Page: 2, Text: "a2", Vector: []float32{0, 1}},
	}))
	require.NoError(t, idx.Upsert(ctx, "doc-b", []Passage{
		{Page: 1, Text: "b1", Vector: []float32{1, 0}},
	}))

	got, err := idx.Query(ctx, "doc-a", []float32{1, 0.1}, 4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a1", got[0].Text)
	require.Equal(t, "a2", got[1].Text)
	require.Greater(t, got[0].Score, got[1].Score)
}

func TestMemoryIndexTiesKeepInsertionOrder(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "doc", []Passage{
		{Page: 3, Text: "third", Vector: []float32{1, 1}},
		{Page: 1, Text: "first", Vector: []float32{1, 1}},
		{Page: 2, Text: "second", Vector: []float32{1, 1}},
	}))

	got, err := idx.Query(ctx, "doc", []float32{1, 1}, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"third", "first"}, []string{got[0].Text, got[1].Text})
}

func TestMemoryIndexUpsertReplacesInPlace(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "doc", []Passage{
		{Page: 1, Text: "old", Vector: []float32{1, 0}},
		{Page: 2, Text: "other", Vector: []float32{1, 0}},
	}))
	require.NoError(t, idx.Upsert(ctx, "doc", []Passage{{Page: 1, Text: "new", Vector: []float32{1, 0}}}))

	n, err := idx.Count(ctx, "doc")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, _ := idx.Query(ctx, "doc", []float32{1, 0}, 4)
	require.Equal(t, "new", got[0].Text)
}

func TestMemoryIndexDeletePartitionAndEmpty(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "doc", []Passage{{Page: 1, Text: "x", Vector: []float32{1}}}))
	require.NoError(t, idx.DeletePartition(ctx, "doc"))

	n, _ := idx.Count(ctx, "doc")
	require.Zero(t, n)

	got, err := idx.Query(ctx, "doc", []float32{1}, 4)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = idx.Query(ctx, "missing", []float32{1}, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryIndexRejectsDimensionMismatch(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "doc", []Passage{{Page: 1, Text: "x", Vector: []float32{1, 0}}}))

	err := idx.Upsert(ctx, "doc", []Passage{{Page: 2, Text: "y", Vector: []float32{1}}})
	require.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = idx.Query(ctx, "doc", []float32{1, 0, 0}, 1)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}
