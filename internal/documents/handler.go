package documents

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pdfchat-backend/internal/shared/server/middleware"
	"pdfchat-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/status", h.status)
}

func (h *Handler) get(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(doc))
}

func (h *Handler) status(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}
	c.Set("statusTransition", string(doc.UploadStatus))
	respond.JSON(c, http.StatusOK, StatusResponse{Status: doc.UploadStatus})
}

func (h *Handler) load(c *gin.Context) (Document, bool) {
	id := c.Param("id")
	c.Set("documentId", id)
	doc, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		respond.FromError(c, err)
		return Document{}, false
	}
	return doc, true
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.FromError(c, err)
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc))
	}
	respond.JSON(c, http.StatusOK, resp)
}
