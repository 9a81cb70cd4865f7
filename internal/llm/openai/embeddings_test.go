package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pdfchat-backend/internal/shared/apperr"
)

func TestEmbedBatchRestoresInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != DefaultEmbeddingModel || len(req.Input) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer server.Close()

	e, err := NewEmbedder("test-key", server.URL, "")
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	if e.Dimensions() != 1536 {
		t.Fatalf("unexpected dimensions %d", e.Dimensions())
	}
	out, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if out[0][0] != 1 || out[1][1] != 1 {
		t.Fatalf("vectors out of order: %v", out)
	}
}

func TestEmbedFailureIsEmbeddingUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	defer server.Close()

	e, _ := NewEmbedder("test-key", server.URL, "text-embedding-3-large")
	if e.Dimensions() != 3072 {
		t.Fatalf("unexpected dimensions %d", e.Dimensions())
	}
	_, err := e.Embed(context.Background(), "hello")
	if !errors.Is(err, apperr.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}
