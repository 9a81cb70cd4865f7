package chat

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pdfchat-backend/internal/shared/server/middleware"
	"pdfchat-backend/internal/shared/server/respond"
	"pdfchat-backend/internal/shared/telemetry"
)

// Answerer runs a chat turn.
type Answerer interface {
	Answer(ctx context.Context, turn Turn, emit func(fragment string) error) error
}

// Handler exposes the streaming chat endpoint.
type Handler struct {
	Service Answerer
}

// NewHandler constructs a Handler.
func NewHandler(svc Answerer) *Handler {
	return &Handler{Service: svc}
}

// RegisterRoutes attaches chat routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/messages", h.sendMessage)
}

type sendMessageRequest struct {
	DocumentID   string `json:"documentId"`
	QuestionText string `json:"questionText"`
}

// sendMessage holds the response until the first fragment arrives so errors
// raised before it still map to a JSON status. Later errors truncate the
// stream.
func (h *Handler) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	c.Set("documentId", req.DocumentID)

	turn := Turn{
		OwnerID:    middleware.UserIDFromContext(c),
		DocumentID: req.DocumentID,
		Question:   req.QuestionText,
		RequestID:  middleware.RequestIDFromContext(c),
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// done is buffered so the turn goroutine never blocks after the client
	// has gone away.
	fragments := make(chan string)
	done := make(chan error, 1)
	go func() {
		done <- h.Service.Answer(ctx, turn, func(fragment string) error {
			select {
			case fragments <- fragment:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	var pending string
	select {
	case pending = <-fragments:
	case err := <-done:
		if err != nil {
			respond.FromError(c, err)
			return
		}
		writeStreamHeaders(c)
		return
	case <-ctx.Done():
		h.logDisconnect(turn, ctx.Err())
		return
	}

	writeStreamHeaders(c)
	c.Stream(func(w io.Writer) bool {
		if pending != "" {
			if _, err := io.WriteString(w, pending); err != nil {
				return false
			}
			pending = ""
			return true
		}
		select {
		case fragment := <-fragments:
			_, err := io.WriteString(w, fragment)
			return err == nil
		case err := <-done:
			if err != nil {
				telemetry.Warn("chat.stream.truncated", map[string]any{
					"document_id": turn.DocumentID,
					"request_id":  turn.RequestID,
					"error":       err,
				})
			}
			return false
		case <-ctx.Done():
			h.logDisconnect(turn, ctx.Err())
			return false
		}
	})
}

func writeStreamHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)
}

func (h *Handler) logDisconnect(turn Turn, err error) {
	telemetry.Info("chat.stream.disconnected", map[string]any{
		"document_id": turn.DocumentID,
		"request_id":  turn.RequestID,
		"error":       err,
	})
}
