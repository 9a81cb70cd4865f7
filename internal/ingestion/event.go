// Package ingestion turns an uploaded PDF into indexed page passages.
package ingestion

import (
	"strings"
	"time"

	"pdfchat-backend/internal/queue"
	"pdfchat-backend/internal/shared/apperr"
)

// Event requests ingestion of one stored file for its owner.
type Event struct {
	OwnerID    string
	StorageKey string
	FileName   string
	SourceURL  string
	Tier       string
	RequestID  string
}

// Validate reports missing fields. It has no side effects.
func (e Event) Validate() error {
	switch {
	case strings.TrimSpace(e.OwnerID) == "":
		return apperr.Validation("ownerId is required")
	case strings.TrimSpace(e.StorageKey) == "":
		return apperr.Validation("storageKey is required")
	case strings.TrimSpace(e.SourceURL) == "":
		return apperr.Validation("sourceUrl is required")
	case strings.TrimSpace(e.FileName) == "":
		return apperr.Validation("fileName is required")
	}
	return nil
}

// Result describes a finished ingestion attempt.
type Result struct {
	DocumentID string
	Duplicate  bool
	Pages      int
}

// ToMessage encodes the event for the queue.
func (e Event) ToMessage(now time.Time) queue.Message {
	return queue.Message{
		OwnerID:    e.OwnerID,
		StorageKey: e.StorageKey,
		FileName:   e.FileName,
		SourceURL:  e.SourceURL,
		Tier:       e.Tier,
		RequestID:  e.RequestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    queue.MessageVersion,
	}
}

// EventFromMessage decodes a queue message into an Event.
func EventFromMessage(msg queue.Message) Event {
	return Event{
		OwnerID:    msg.OwnerID,
		StorageKey: msg.StorageKey,
		FileName:   msg.FileName,
		SourceURL:  msg.SourceURL,
		Tier:       msg.Tier,
		RequestID:  msg.RequestID,
	}
}
