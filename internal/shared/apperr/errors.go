// Package apperr holds the error taxonomy shared by the ingestion and chat
// pipelines and its mapping onto HTTP responses.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthorization means the caller has no identity or does not own the resource.
	ErrAuthorization = errors.New("authorization")
	// ErrNotFound means the referenced resource does not exist for the caller.
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded means a document exceeds the caller's tier limits.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrUpstream means an embedding, completion, storage or index call failed.
	ErrUpstream = errors.New("upstream service")
	// ErrValidation means the request payload is malformed.
	ErrValidation = errors.New("validation")

	// ErrFetch is an upstream failure while reading the source file.
	ErrFetch = fmt.Errorf("%w: fetch", ErrUpstream)
	// ErrEmbeddingUnavailable is an upstream failure of the embedding model.
	ErrEmbeddingUnavailable = fmt.Errorf("%w: embedding unavailable", ErrUpstream)
	// ErrCompletion is an upstream failure of the completion model.
	ErrCompletion = fmt.Errorf("%w: completion", ErrUpstream)
	// ErrIndex is an upstream failure of the vector index.
	ErrIndex = fmt.Errorf("%w: vector index", ErrUpstream)
)

// Validation builds an ErrValidation with a message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Upstream wraps err under the given upstream kind (ErrFetch, ErrCompletion...).
// Context cancellation is passed through untouched.
func Upstream(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, kind) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// QuotaExceeded reports a page count above the tier limit.
func QuotaExceeded(tier string, pages, limit int) error {
	return fmt.Errorf("%w: tier %s allows %d pages, document has %d", ErrQuotaExceeded, tier, limit, pages)
}

// Code returns a short machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrAuthorization):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrFetch):
		return "fetch_failed"
	case errors.Is(err, ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps err onto a status code and error code.
func HTTPStatus(err error) (int, string) {
	code := Code(err)
	switch code {
	case "validation_error":
		return http.StatusBadRequest, code
	case "unauthorized":
		return http.StatusUnauthorized, code
	case "not_found":
		return http.StatusNotFound, code
	case "quota_exceeded":
		return http.StatusUnprocessableEntity, code
	case "fetch_failed", "embedding_unavailable", "upstream_error":
		return http.StatusBadGateway, code
	case "cancelled":
		return http.StatusGatewayTimeout, code
	default:
		return http.StatusInternalServerError, code
	}
}

// PublicMessage returns a client-safe message for err. Internal details are
// never included.
func PublicMessage(err error) string {
	switch Code(err) {
	case "validation_error":
		return err.Error()
	case "unauthorized":
		return "missing or invalid identity"
	case "not_found":
		return "document not found"
	case "quota_exceeded":
		return "document exceeds the page limit for your plan"
	case "fetch_failed", "embedding_unavailable", "upstream_error":
		return "upstream service unavailable"
	case "cancelled":
		return "request cancelled"
	default:
		return "unexpected server error"
	}
}
