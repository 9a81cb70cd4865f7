// Package uploads accepts PDF uploads and hands them to ingestion.
package uploads

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pdfchat-backend/internal/ingestion"
	"pdfchat-backend/internal/quota"
	"pdfchat-backend/internal/shared/apperr"
	"pdfchat-backend/internal/shared/server/middleware"
	"pdfchat-backend/internal/shared/server/respond"
	"pdfchat-backend/internal/shared/storage/object"
	"pdfchat-backend/internal/shared/telemetry"
	"pdfchat-backend/internal/shared/util"
)

const (
	presignExpires    = 15 * time.Minute
	contentTypePDF    = "application/pdf"
	multipartOverhead = 1 << 20
)

// TierResolver returns the caller's plan tier.
type TierResolver interface {
	Tier(ctx context.Context, userID string) (string, error)
}

// Handler serves the upload endpoints.
type Handler struct {
	store      object.ObjectStore
	presigner  object.Presigner
	dispatcher ingestion.Dispatcher
	tiers      TierResolver
	quotas     *quota.Table
}

// NewHandler constructs a Handler. Presigned uploads are offered only when
// store implements object.Presigner.
func NewHandler(store object.ObjectStore, dispatcher ingestion.Dispatcher, tiers TierResolver, quotas *quota.Table) *Handler {
	if quotas == nil {
		quotas = quota.Defaults()
	}
	presigner, _ := store.(object.Presigner)
	return &Handler{
		store:      store,
		presigner:  presigner,
		dispatcher: dispatcher,
		tiers:      tiers,
		quotas:     quotas,
	}
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presign)
	rg.POST("/uploads/complete", h.complete)
	rg.POST("/documents", h.upload)
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	StorageKey       string `json:"storageKey"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

func (h *Handler) presign(c *gin.Context) {
	if h.presigner == nil {
		respond.Error(c, http.StatusNotImplemented, "not_supported", "direct uploads are not available", nil)
		return
	}
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.TrimSpace(req.ContentType)

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if req.ContentType != contentTypePDF || !util.IsPDFName(req.FileName) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "only PDF files are accepted", nil)
		return
	}
	if req.SizeBytes <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes is required", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	tier, err := h.tiers.Tier(c.Request.Context(), userID)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	if err := h.quotas.CheckFileSize(tier, req.SizeBytes); err != nil {
		respond.Error(c, http.StatusUnprocessableEntity, "quota_exceeded", "file exceeds the size limit for your plan", map[string]any{
			"maxFileSizeBytes": h.quotas.For(tier).MaxFileSizeBytes,
		})
		return
	}

	key, err := object.NewKey(userID, req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}
	url, err := h.presigner.PresignUpload(c.Request.Context(), key, req.ContentType, presignExpires)
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"error":      err,
			"key":        key,
			"size_bytes": req.SizeBytes,
			"request_id": middleware.RequestIDFromContext(c),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	respond.JSON(c, http.StatusOK, presignResponse{
		UploadURL:        url,
		StorageKey:       key,
		ExpiresInSeconds: int64(presignExpires.Seconds()),
	})
}

type completeRequest struct {
	StorageKey string `json:"storageKey"`
	FileName   string `json:"fileName"`
}

type acceptedResponse struct {
	StorageKey string `json:"storageKey"`
	FileName   string `json:"fileName"`
	Status     string `json:"status"`
}

func (h *Handler) complete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.StorageKey = strings.TrimSpace(req.StorageKey)
	if req.StorageKey == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "storageKey is required", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	if !object.OwnedBy(req.StorageKey, userID) {
		respond.FromError(c, apperr.ErrNotFound)
		return
	}
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = object.FileName(req.StorageKey)
	}
	h.accept(c, userID, req.StorageKey, fileName)
}

// upload handles a multipart PDF for stores without direct uploads.
func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	tier, err := h.tiers.Tier(c.Request.Context(), userID)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	limit := h.quotas.For(tier).MaxFileSizeBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusUnprocessableEntity, "quota_exceeded", "file exceeds the size limit for your plan", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	if !util.IsPDFName(fileHeader.Filename) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "only PDF files are accepted", nil)
		return
	}
	if err := h.quotas.CheckFileSize(tier, fileHeader.Size); err != nil {
		respond.Error(c, http.StatusUnprocessableEntity, "quota_exceeded", "file exceeds the size limit for your plan", map[string]any{
			"maxFileSizeBytes": limit,
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	stored, err := h.store.Save(c.Request.Context(), userID, fileHeader.Filename, file)
	if err != nil {
		telemetry.Error("uploads.save.failed", map[string]any{
			"error":      err,
			"request_id": middleware.RequestIDFromContext(c),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store file", nil)
		return
	}
	h.acceptWithTier(c, userID, tier, stored.Key, fileHeader.Filename)
}

func (h *Handler) accept(c *gin.Context, userID, storageKey, fileName string) {
	tier, err := h.tiers.Tier(c.Request.Context(), userID)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	h.acceptWithTier(c, userID, tier, storageKey, fileName)
}

// acceptWithTier builds the ingestion event and dispatches it. The tier is
// fixed here so a plan change during ingestion does not alter the outcome.
func (h *Handler) acceptWithTier(c *gin.Context, userID, tier, storageKey, fileName string) {
	ctx := c.Request.Context()
	sourceURL, err := h.store.SourceURL(ctx, storageKey)
	if err != nil {
		telemetry.Error("uploads.source_url.failed", map[string]any{"error": err, "key": storageKey})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to resolve upload", nil)
		return
	}

	ev := ingestion.Event{
		OwnerID:    userID,
		StorageKey: storageKey,
		FileName:   fileName,
		SourceURL:  sourceURL,
		Tier:       tier,
		RequestID:  middleware.RequestIDFromContext(c),
	}
	if err := h.dispatcher.Dispatch(ctx, ev); err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			respond.FromError(c, err)
			return
		}
		telemetry.Error("uploads.dispatch.failed", map[string]any{"error": err, "key": storageKey})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start processing", nil)
		return
	}

	respond.Accepted(c, acceptedResponse{
		StorageKey: storageKey,
		FileName:   fileName,
		Status:     "PROCESSING",
	})
}
