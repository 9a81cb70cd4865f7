// Package langchain adapts langchaingo models (Ollama in practice) to the
// streaming completion contract used by the chat service.
package langchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"pdfchat-backend/internal/llm"
	"pdfchat-backend/internal/shared/apperr"
)

// Completer streams completions from any langchaingo model.
type Completer struct {
	model llms.Model
}

// New wraps an existing langchaingo model.
func New(model llms.Model) *Completer {
	return &Completer{model: model}
}

// NewOllama connects to an Ollama server.
func NewOllama(serverURL, model string) (*Completer, error) {
	m, err := NewOllamaModel(serverURL, model)
	if err != nil {
		return nil, err
	}
	return New(m), nil
}

// NewOllamaModel builds the raw Ollama model, shared with the embedder.
func NewOllamaModel(serverURL, model string) (*ollama.LLM, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if strings.TrimSpace(serverURL) != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return m, nil
}

// Stream sends the prompt with temperature 0 and forwards streamed chunks.
func (c *Completer) Stream(ctx context.Context, messages []llm.Message, onFragment func(string) error) error {
	if len(messages) == 0 {
		return llm.ErrEmptyPrompt
	}
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatType(m.Role), m.Content))
	}

	_, err := c.model.GenerateContent(ctx, content,
		llms.WithTemperature(0),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onFragment(string(chunk))
		}),
	)
	return apperr.Upstream(apperr.ErrCompletion, "langchain stream", err)
}

func chatType(role llm.Role) llms.ChatMessageType {
	switch role {
	case llm.RoleSystem:
		return llms.ChatMessageTypeSystem
	case llm.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

var _ llm.StreamCompleter = (*Completer)(nil)
