package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"pdfchat-backend/internal/shared/apperr"
)

func TestFromErrorMapsTaxonomy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not found", err: fmt.Errorf("find: %w", apperr.ErrNotFound), status: http.StatusNotFound, code: "not_found"},
		{name: "validation", err: apperr.Validation("questionText is required"), status: http.StatusBadRequest, code: "validation_error"},
		{name: "internal", err: errors.New("db exploded"), status: http.StatusInternalServerError, code: "internal_error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(resp)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			FromError(c, tt.err)

			if resp.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.Code)
			}
			var body ErrorResponse
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, body.Error.Code)
			}
			if tt.code == "internal_error" && body.Error.Message == "db exploded" {
				t.Fatalf("internal details leaked to client")
			}
		})
	}
}

func TestAcceptedSetsPollingHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

	Accepted(c, map[string]string{"status": "PROCESSING"})

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") != "2" {
		t.Fatalf("expected Retry-After 2, got %q", resp.Header().Get("Retry-After"))
	}
	if resp.Header().Get("Cache-Control") != "private, no-store" {
		t.Fatalf("expected private no-store, got %q", resp.Header().Get("Cache-Control"))
	}
}
