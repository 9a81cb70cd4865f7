// Package chat answers questions about a document by streaming a completion
// grounded on retrieved passages and recent conversation.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pdfchat-backend/internal/documents"
	"pdfchat-backend/internal/llm"
	"pdfchat-backend/internal/messages"
	"pdfchat-backend/internal/retrieval"
	"pdfchat-backend/internal/shared/apperr"
	"pdfchat-backend/internal/shared/metrics"
	"pdfchat-backend/internal/shared/telemetry"
)

const persistTimeout = 10 * time.Second

// Phase is a step of a chat turn.
type Phase string

const (
	PhaseAuthorizing Phase = "authorizing"
	PhaseRetrieving  Phase = "retrieving"
	PhaseStreaming   Phase = "streaming"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

// Turn is one user question about one document.
type Turn struct {
	OwnerID    string
	DocumentID string
	Question   string
	RequestID  string
}

// DocumentFinder resolves a document for its owner.
type DocumentFinder interface {
	FindForOwner(ctx context.Context, id, ownerID string) (documents.Document, error)
}

// Searcher returns the passages most similar to a query.
type Searcher interface {
	Search(ctx context.Context, documentID, query string, k int) ([]string, error)
}

// Service drives chat turns. It holds no per-turn state.
type Service struct {
	docs         DocumentFinder
	store        messages.Store
	search       Searcher
	model        llm.StreamCompleter
	historyLimit int
	topK         int
}

// NewService wires a Service with the default history window and top-k.
func NewService(docs DocumentFinder, store messages.Store, search Searcher, model llm.StreamCompleter) *Service {
	return &Service{
		docs:         docs,
		store:        store,
		search:       search,
		model:        model,
		historyLimit: messages.DefaultHistoryLimit,
		topK:         retrieval.DefaultK,
	}
}

// Answer runs one turn, passing each completion fragment to emit. The answer
// is stored whenever the stream ends on its own, even if ctx is cancelled
// right after. A stream cut short by an upstream error or cancellation leaves
// just the question in the conversation.
func (s *Service) Answer(ctx context.Context, turn Turn, emit func(fragment string) error) (err error) {
	metrics.IncChatTurn()
	phase := PhaseAuthorizing
	start := time.Now()
	s.logPhase(turn, phase, nil)
	defer func() {
		if err != nil {
			metrics.IncChatTurnFailed()
			s.logPhase(turn, PhaseFailed, map[string]any{
				"failed_phase": string(phase),
				"error_code":   apperr.Code(err),
				"error":        err,
			})
		}
	}()

	if err := validateTurn(turn); err != nil {
		return err
	}
	if _, err := s.docs.FindForOwner(ctx, turn.DocumentID, turn.OwnerID); err != nil {
		return err
	}

	question, err := s.store.Append(ctx, messages.Message{
		DocumentID:   turn.DocumentID,
		OwnerID:      turn.OwnerID,
		AuthorIsUser: true,
		Text:         turn.Question,
	})
	if err != nil {
		return fmt.Errorf("store question: %w", err)
	}

	phase = PhaseRetrieving
	s.logPhase(turn, phase, nil)
	passages, err := s.search.Search(ctx, turn.DocumentID, turn.Question, s.topK)
	if err != nil {
		return err
	}
	history, err := s.store.HistoryBefore(ctx, turn.DocumentID, question.Seq, s.historyLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	phase = PhaseStreaming
	s.logPhase(turn, phase, map[string]any{"passages": len(passages), "history": len(history)})
	streamStart := time.Now()
	var answer strings.Builder
	err = s.model.Stream(ctx, BuildPrompt(history, passages, turn.Question), func(fragment string) error {
		answer.WriteString(fragment)
		return emit(fragment)
	})
	metrics.ObserveChatStreamDurationMs(float64(time.Since(streamStart).Milliseconds()))
	if err != nil {
		return apperr.Upstream(apperr.ErrCompletion, "stream completion", err)
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if _, err := s.store.Append(persistCtx, messages.Message{
		DocumentID: turn.DocumentID,
		OwnerID:    turn.OwnerID,
		Text:       answer.String(),
	}); err != nil {
		return fmt.Errorf("store answer: %w", err)
	}
	metrics.IncChatAnswerPersisted()

	phase = PhaseCompleted
	s.logPhase(turn, phase, map[string]any{
		"answer_len":  answer.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func validateTurn(turn Turn) error {
	switch {
	case strings.TrimSpace(turn.OwnerID) == "":
		return apperr.ErrAuthorization
	case strings.TrimSpace(turn.DocumentID) == "":
		return apperr.Validation("documentId is required")
	case strings.TrimSpace(turn.Question) == "":
		return apperr.Validation("questionText is required")
	}
	return nil
}

func (s *Service) logPhase(turn Turn, phase Phase, extra map[string]any) {
	fields := map[string]any{
		"phase":       string(phase),
		"document_id": turn.DocumentID,
		"owner_id":    turn.OwnerID,
	}
	if turn.RequestID != "" {
		fields["request_id"] = turn.RequestID
	}
	for k, v := range extra {
		fields[k] = v
	}
	if phase == PhaseFailed {
		telemetry.Warn("chat.turn", fields)
		return
	}
	telemetry.Info("chat.turn", fields)
}
