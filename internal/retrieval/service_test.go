package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"pdfchat-backend/internal/embedding"
	"pdfchat-backend/internal/shared/apperr"
	"pdfchat-backend/internal/vectorindex"
)

func seed(t *testing.T, idx vectorindex.Index, emb embedding.Embedder, doc string, pages ...string) {
	t.Helper()
	vecs, err := emb.EmbedBatch(context.Background(), pages)
	require.NoError(t, err)
	passages := make([]vectorindex.Passage, len(pages))
	for i, text := range pages {
		passages[i] = vectorindex.Passage{Page: i + 1, Text: text, Vector: vecs[i]}
	}
	require.NoError(t, idx.Upsert(context.Background(), doc, passages))
}

func TestSearchReturnsMostRelevantFirst(t *testing.T) {
	emb := embedding.NewHashEmbedder(512)
	idx := vectorindex.NewMemoryIndex()
	seed(t, idx, emb, "doc-1",
		"Company history and founders.",
		"Revenue was 10 million dollars in 2023.",
		"Office locations and hiring plans.",
	)
	seed(t, idx, emb, "doc-2", "Revenue revenue revenue in another document.")

	got, err := NewService(emb, idx).Search(context.Background(), "doc-1", "what was the revenue in 2023", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "Revenue was 10 million dollars in 2023.", got[0])
	for _, text := range got {
		require.NotContains(t, text, "another document")
	}
}

func TestSearchRespectsK(t *testing.T) {
	emb := embedding.NewHashEmbedder(64)
	idx := vectorindex.NewMemoryIndex()
	seed(t, idx, emb, "doc", "a", "b", "c", "d", "e", "f")

	got, err := NewService(emb, idx).Search(context.Background(), "doc", "a", 0)
	require.NoError(t, err)
	require.Len(t, got, DefaultK)

	got, err = NewService(emb, idx).Search(context.Background(), "doc", "a", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestSearchEmptyDocument(t *testing.T) {
	got, err := NewService(embedding.NewHashEmbedder(8), vectorindex.NewMemoryIndex()).
		Search(context.Background(), "doc", "anything", 4)
	require.NoError(t, err)
	require.Empty(t, got)
}

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model offline")
}

func TestSearchEmbeddingFailure(t *testing.T) {
	_, err := NewService(failingEmbedder{}, vectorindex.NewMemoryIndex()).Search(context.Background(), "doc", "q", 4)
	require.ErrorIs(t, err, apperr.ErrEmbeddingUnavailable)
}

func TestSearchRequiresDocument(t *testing.T) {
	_, err := NewService(embedding.NewHashEmbedder(8), vectorindex.NewMemoryIndex()).Search(context.Background(), " ", "q", 4)
	require.ErrorIs(t, err, apperr.ErrValidation)
}
