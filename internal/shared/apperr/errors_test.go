package apperr

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "validation", err: Validation("documentId is required"), status: http.StatusBadRequest, code: "validation_error"},
		{name: "authorization", err: ErrAuthorization, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "not found", err: ErrNotFound, status: http.StatusNotFound, code: "not_found"},
		{name: "quota", err: QuotaExceeded("Free", 10, 5), status: http.StatusUnprocessableEntity, code: "quota_exceeded"},
		{name: "fetch", err: Upstream(ErrFetch, "download", errors.New("dial tcp")), status: http.StatusBadGateway, code: "fetch_failed"},
		{name: "embedding", err: Upstream(ErrEmbeddingUnavailable, "embed", errors.New("503")), status: http.StatusBadGateway, code: "embedding_unavailable"},
		{name: "completion", err: Upstream(ErrCompletion, "stream", errors.New("reset")), status: http.StatusBadGateway, code: "upstream_error"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal_error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, code := HTTPStatus(tt.err)
			if status != tt.status || code != tt.code {
				t.Fatalf("HTTPStatus(%v) = %d %q, want %d %q", tt.err, status, code, tt.status, tt.code)
			}
		})
	}
}

func TestUpstreamKindsWrapUpstream(t *testing.T) {
	for _, kind := range []error{ErrFetch, ErrEmbeddingUnavailable, ErrCompletion, ErrIndex} {
		err := Upstream(kind, "op", errors.New("cause"))
		if !errors.Is(err, ErrUpstream) {
			t.Fatalf("expected %v to wrap ErrUpstream", err)
		}
		if !errors.Is(err, kind) {
			t.Fatalf("expected %v to wrap %v", err, kind)
		}
	}
}

func TestUpstreamPassesCancellationThrough(t *testing.T) {
	err := Upstream(ErrCompletion, "stream", context.Canceled)
	if errors.Is(err, ErrUpstream) {
		t.Fatalf("cancellation should not be classified as upstream failure")
	}
	if Upstream(ErrFetch, "op", nil) != nil {
		t.Fatalf("nil error should stay nil")
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	err := Upstream(ErrFetch, "download", errors.New("secret-host:5432 refused"))
	if got := PublicMessage(err); got != "upstream service unavailable" {
		t.Fatalf("unexpected message %q", got)
	}
}
