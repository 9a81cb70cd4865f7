package chat

import (
	"strings"

	"pdfchat-backend/internal/llm"
	"pdfchat-backend/internal/messages"
)

const (
	systemInstruction = "Use the following pieces of context (or previous conversation if needed) to answer the users question in markdown format."
	unknownAnswerRule = "If you don't know the answer, just say that you don't know, don't try to make up an answer."
	blockSeparator    = "\n----------------\n"
)

// BuildPrompt assembles the system and user messages for one turn. History
// is rendered oldest first and passages are joined by a blank line.
func BuildPrompt(history []messages.Message, passages []string, question string) []llm.Message {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n")
	b.WriteString(unknownAnswerRule)
	b.WriteString("\n")
	b.WriteString(blockSeparator)

	b.WriteString("\nPREVIOUS CONVERSATION:\n")
	for _, m := range history {
		if m.AuthorIsUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	b.WriteString(blockSeparator)

	b.WriteString("\nCONTEXT:\n")
	b.WriteString(strings.Join(passages, "\n\n"))
	b.WriteString("\n\nUSER INPUT: ")
	b.WriteString(question)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemInstruction},
		{Role: llm.RoleUser, Content: b.String()},
	}
}
