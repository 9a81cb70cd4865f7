// Package retrieval finds the passages of a document most relevant to a query.
package retrieval

import (
	"context"
	"strings"

	"pdfchat-backend/internal/embedding"
	"pdfchat-backend/internal/shared/apperr"
	"pdfchat-backend/internal/vectorindex"
)

// DefaultK is the number of passages handed to the prompt.
const DefaultK = 4

// Service embeds queries and searches the vector index.
type Service struct {
	embedder embedding.Embedder
	index    vectorindex.Index
}

// NewService wires a retrieval service.
func NewService(embedder embedding.Embedder, index vectorindex.Index) *Service {
	return &Service{embedder: embedder, index: index}
}

// Search returns up to k passage texts of documentID, most similar first.
// A non-positive k means DefaultK. A document with no passages yields an
// empty result, not an error.
func (s *Service) Search(ctx context.Context, documentID, query string, k int) ([]string, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, apperr.Validation("documentId is required")
	}
	if k <= 0 {
		k = DefaultK
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperr.Upstream(apperr.ErrEmbeddingUnavailable, "embed query", err)
	}
	matches, err := s.index.Query(ctx, documentID, vec, k)
	if err != nil {
		return nil, apperr.Upstream(apperr.ErrIndex, "query index", err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Text)
	}
	return out, nil
}
