package messages

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pdfchat-backend/internal/documents"
	"pdfchat-backend/internal/shared/server/middleware"
	"pdfchat-backend/internal/shared/server/respond"
)

// DocumentFinder resolves a document for its owner.
type DocumentFinder interface {
	FindForOwner(ctx context.Context, id, ownerID string) (documents.Document, error)
}

// Handler serves the paginated conversation of a document.
type Handler struct {
	Store Store
	Docs  DocumentFinder
}

// NewHandler constructs a Handler.
func NewHandler(store Store, docs DocumentFinder) *Handler {
	return &Handler{Store: store, Docs: docs}
}

// RegisterRoutes attaches message routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/messages", h.list)
}

func (h *Handler) list(c *gin.Context) {
	docID := c.Param("id")
	c.Set("documentId", docID)

	if _, err := h.Docs.FindForOwner(c.Request.Context(), docID, middleware.UserIDFromContext(c)); err != nil {
		respond.FromError(c, err)
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "limit must be a number", nil)
			return
		}
		limit = parsed
	}

	page, err := h.Store.ListPage(c.Request.Context(), docID, c.Query("cursor"), limit)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, page)
}
