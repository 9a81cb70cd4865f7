// Package messages stores the per-document conversation.
package messages

import (
	"context"
	"strconv"
	"time"

	"pdfchat-backend/internal/shared/apperr"
)

// DefaultHistoryLimit is the number of prior messages folded into a prompt.
const DefaultHistoryLimit = 6

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

// Message is one conversation entry. Messages are append-only.
type Message struct {
	ID           string    `json:"id"`
	Seq          int64     `json:"-"`
	DocumentID   string    `json:"documentId"`
	OwnerID      string    `json:"-"`
	AuthorIsUser bool      `json:"isUserMessage"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Page is a newest-first slice of a conversation.
type Page struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// Store persists conversation messages.
type Store interface {
	// Append assigns ID, Seq and a CreatedAt that is monotonic per document.
	Append(ctx context.Context, msg Message) (Message, error)
	// RecentHistory returns at most limit most recent messages, oldest first.
	RecentHistory(ctx context.Context, documentID string, limit int) ([]Message, error)
	// HistoryBefore is RecentHistory restricted to messages with Seq < beforeSeq.
	HistoryBefore(ctx context.Context, documentID string, beforeSeq int64, limit int) ([]Message, error)
	// ListPage returns messages newest first, starting below cursor.
	ListPage(ctx context.Context, documentID, cursor string, limit int) (Page, error)
}

// NormalizePageLimit clamps a client-supplied page size.
func NormalizePageLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}

// encodeCursor and decodeCursor keep the cursor opaque to clients.
func encodeCursor(seq int64) string {
	return strconv.FormatInt(seq, 36)
}

func decodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(cursor, 36, 64)
	if err != nil || seq <= 0 {
		return 0, apperr.Validation("invalid cursor")
	}
	return seq, nil
}

func validate(msg Message) error {
	if msg.DocumentID == "" {
		return apperr.Validation("documentId is required")
	}
	if msg.OwnerID == "" {
		return apperr.ErrAuthorization
	}
	return nil
}
