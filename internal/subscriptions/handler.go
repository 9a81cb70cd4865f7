package subscriptions

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pdfchat-backend/internal/quota"
	"pdfchat-backend/internal/shared/server/middleware"
	"pdfchat-backend/internal/shared/server/respond"
)

// Handler exposes the caller's plan and limits.
type Handler struct {
	Svc    *Service
	Quotas *quota.Table
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, quotas *quota.Table) *Handler {
	return &Handler{Svc: svc, Quotas: quotas}
}

// RegisterRoutes attaches subscription routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/subscription", h.get)
}

// RegisterDevRoutes attaches dev-only subscription routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.PUT("/subscription", h.set)
}

type planResponse struct {
	Plan
	MaxPagesPerDocument int   `json:"maxPagesPerDocument"`
	MaxFileSizeBytes    int64 `json:"maxFileSizeBytes"`
}

func (h *Handler) get(c *gin.Context) {
	plan, err := h.Svc.Lookup(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, h.toResponse(plan))
}

type setRequest struct {
	Tier         string `json:"tier"`
	IsSubscribed bool   `json:"isSubscribed"`
}

func (h *Handler) set(c *gin.Context) {
	var req setRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	plan, err := h.Svc.Set(c.Request.Context(), middleware.UserIDFromContext(c), Plan{Tier: req.Tier, IsSubscribed: req.IsSubscribed})
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, h.toResponse(plan))
}

func (h *Handler) toResponse(plan Plan) planResponse {
	q := h.Quotas.For(plan.Tier)
	return planResponse{
		Plan:                plan,
		MaxPagesPerDocument: q.MaxPagesPerDocument,
		MaxFileSizeBytes:    q.MaxFileSizeBytes,
	}
}
