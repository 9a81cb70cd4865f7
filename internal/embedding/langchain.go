package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"pdfchat-backend/internal/shared/apperr"
)

// LangchainEmbedder adapts a langchaingo embedder (Ollama in practice).
type LangchainEmbedder struct {
	inner      embeddings.Embedder
	dimensions int
}

// NewLangchainEmbedder wraps inner. When dimensions is zero it is measured with
// a single embedding call.
func NewLangchainEmbedder(ctx context.Context, inner embeddings.Embedder, dimensions int) (*LangchainEmbedder, error) {
	e := &LangchainEmbedder{inner: inner, dimensions: dimensions}
	if dimensions > 0 {
		return e, nil
	}
	v, err := e.Embed(ctx, "dimension check")
	if err != nil {
		return nil, fmt.Errorf("measure embedding dimensions: %w", err)
	}
	e.dimensions = len(v)
	return e, nil
}

// Embed returns the query embedding of text.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, apperr.Upstream(apperr.ErrEmbeddingUnavailable, "langchain embed", err)
	}
	return v, nil
}

// EmbedBatch embeds texts as documents.
func (e *LangchainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, apperr.Upstream(apperr.ErrEmbeddingUnavailable, "langchain embed batch", err)
	}
	if len(out) != len(texts) {
		return nil, apperr.Upstream(apperr.ErrEmbeddingUnavailable, "langchain embed batch",
			fmt.Errorf("got %d vectors for %d inputs", len(out), len(texts)))
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *LangchainEmbedder) Dimensions() int { return e.dimensions }
