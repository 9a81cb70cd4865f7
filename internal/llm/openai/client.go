package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"pdfchat-backend/internal/llm"
	"pdfchat-backend/internal/shared/apperr"
	"pdfchat-backend/internal/shared/telemetry"
)

// DefaultBaseURL is the public OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

var errTemperatureUnsupported = errors.New("temperature unsupported")

// Client implements llm.StreamCompleter using streamed Chat Completions.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, baseURL, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    normalizeBaseURL(baseURL),
		model:      model,
		httpClient: &http.Client{Timeout: timeoutFromEnv()},
	}, nil
}

func timeoutFromEnv() time.Duration {
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return timeout
}

func normalizeBaseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return DefaultBaseURL
	}
	return raw
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	// Error is set when the provider aborts the stream mid-response.
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type apiError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Stream sends the prompt with stream=true and forwards every content delta.
// Temperature is pinned to 0 unless the model rejects it, in which case the
// request is retried once without it.
func (c *Client) Stream(ctx context.Context, messages []llm.Message, onFragment func(string) error) error {
	if len(messages) == 0 {
		return llm.ErrEmptyPrompt
	}
	withTemp := !omitTemperature(c.model)
	err := c.streamOnce(ctx, messages, withTemp, onFragment)
	if errors.Is(err, errTemperatureUnsupported) && withTemp {
		telemetry.Warn("openai.temperature.retry", map[string]any{"model": c.model})
		err = c.streamOnce(ctx, messages, false, onFragment)
	}
	return apperr.Upstream(apperr.ErrCompletion, "openai stream", err)
}

func (c *Client) streamOnce(ctx context.Context, messages []llm.Message, withTemp bool, onFragment func(string) error) error {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(messages)),
		Stream:   true,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	if withTemp {
		temp := float32(0)
		reqBody.Temperature = &temp
	}

	resp, err := c.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return readSSE(resp.Body, onFragment)
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("openai request timeout: %w", err)
		}
		return nil, err
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		if isTemperatureUnsupported(parsed.Error.Message) {
			return fmt.Errorf("openai http status %d: %w: %s", resp.StatusCode, errTemperatureUnsupported, parsed.Error.Message)
		}
		return fmt.Errorf("openai http status %d: %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Type)
	}
	return fmt.Errorf("openai http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// readSSE parses the server-sent event stream of a chat completion.
func readSSE(r io.Reader, onFragment func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			var parsed apiError
			if json.Unmarshal([]byte(data), &parsed) == nil && parsed.Error != nil {
				return fmt.Errorf("openai stream error: %s", parsed.Error.Message)
			}
			return fmt.Errorf("openai stream parse: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("openai stream error: %s", chunk.Error.Message)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := onFragment(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("openai stream read: %w", err)
	}
	return io.ErrUnexpectedEOF
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

// omitTemperature reports models that only accept the default temperature:
// the gpt-5 family plus anything listed in LLM_NO_TEMP0_MODELS.
func omitTemperature(model string) bool {
	if isGPT5(model) {
		return true
	}
	normalized := strings.ToLower(strings.TrimSpace(model))
	for _, entry := range strings.Split(os.Getenv("LLM_NO_TEMP0_MODELS"), ",") {
		if strings.ToLower(strings.TrimSpace(entry)) == normalized && normalized != "" {
			return true
		}
	}
	return false
}

func isTemperatureUnsupported(message string) bool {
	msg := strings.ToLower(message)
	return strings.Contains(msg, "temperature") && strings.Contains(msg, "unsupported")
}

var _ llm.StreamCompleter = (*Client)(nil)
