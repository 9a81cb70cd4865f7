package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"pdfchat-backend/internal/shared/apperr"
)

// DefaultEmbeddingModel is used when EMBEDDING_MODEL is unset.
const DefaultEmbeddingModel = "text-embedding-3-small"

var embeddingDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Embedder calls the OpenAI embeddings endpoint.
type Embedder struct {
	client *Client
	dims   int
}

// NewEmbedder builds an embedder sharing the chat client's HTTP plumbing.
func NewEmbedder(apiKey, baseURL, model string) (*Embedder, error) {
	if strings.TrimSpace(model) == "" {
		model = DefaultEmbeddingModel
	}
	client, err := NewClient(apiKey, baseURL, model)
	if err != nil {
		return nil, err
	}
	dims, ok := embeddingDimensions[model]
	if !ok {
		dims = 1536
	}
	return &Embedder{client: client, dims: dims}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Dimensions returns the vector size of the configured model.
func (e *Embedder) Dimensions() int { return e.dims }

// Embed returns the vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one request. Output order matches input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out, err := e.embed(ctx, texts)
	return out, apperr.Upstream(apperr.ErrEmbeddingUnavailable, "openai embeddings", err)
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.post(ctx, "/embeddings", embeddingRequest{Model: e.client.model, Input: texts})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("openai embeddings parse: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(parsed.Data), len(texts))
	}
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	out := make([][]float32, len(texts))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

