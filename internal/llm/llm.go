package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Role identifies the author of a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the prompt sent to a completion model.
type Message struct {
	Role    Role
	Content string
}

// StreamCompleter abstracts completion providers that stream their answer.
// onFragment is called in order for every text fragment; returning an error
// from it aborts the stream with that error.
type StreamCompleter interface {
	Stream(ctx context.Context, messages []Message, onFragment func(string) error) error
}

// ErrEmptyPrompt is returned when Stream is called without messages.
var ErrEmptyPrompt = errors.New("prompt has no messages")

// FakeCompleter streams a fixed list of fragments. It is used in tests and
// when LLM_PROVIDER=fake.
type FakeCompleter struct {
	Fragments []string
	// Err is returned after FailAfter fragments have been emitted.
	Err       error
	FailAfter int

	mu    sync.Mutex
	calls [][]Message
}

// Stream emits the configured fragments.
func (f *FakeCompleter) Stream(ctx context.Context, messages []Message, onFragment func(string) error) error {
	if len(messages) == 0 {
		return ErrEmptyPrompt
	}
	f.mu.Lock()
	f.calls = append(f.calls, append([]Message(nil), messages...))
	f.mu.Unlock()

	fragments := f.Fragments
	if fragments == nil {
		fragments = echoFragments(messages)
	}
	for i, frag := range fragments {
		if f.Err != nil && i == f.FailAfter {
			return f.Err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onFragment(frag); err != nil {
			return err
		}
	}
	if f.Err != nil && f.FailAfter >= len(fragments) {
		return f.Err
	}
	return nil
}

// Calls returns the prompts received so far.
func (f *FakeCompleter) Calls() [][]Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]Message(nil), f.calls...)
}

// echoFragments answers with the words of the last user message so the dev
// setup produces visible output without a model.
func echoFragments(messages []Message) []string {
	last := messages[len(messages)-1].Content
	if i := strings.LastIndex(last, "USER INPUT:"); i >= 0 {
		last = last[i+len("USER INPUT:"):]
	}
	words := strings.Fields(last)
	out := make([]string, 0, len(words)+1)
	out = append(out, "You asked:")
	for _, w := range words {
		out = append(out, " "+w)
	}
	return out
}
