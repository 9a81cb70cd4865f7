package messages

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps messages in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	byDoc   map[string][]Message
	nowFunc func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byDoc:   make(map[string][]Message),
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// Append stores msg with a fresh ID and sequence number.
func (s *MemoryStore) Append(ctx context.Context, msg Message) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	msg.Seq = s.seq
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.nowFunc()
	if existing := s.byDoc[msg.DocumentID]; len(existing) > 0 {
		last := existing[len(existing)-1].CreatedAt
		if !msg.CreatedAt.After(last) {
			msg.CreatedAt = last.Add(time.Microsecond)
		}
	}
	s.byDoc[msg.DocumentID] = append(s.byDoc[msg.DocumentID], msg)
	return msg, nil
}

// RecentHistory returns the last limit messages, oldest first.
func (s *MemoryStore) RecentHistory(ctx context.Context, documentID string, limit int) ([]Message, error) {
	return s.HistoryBefore(ctx, documentID, 0, limit)
}

// HistoryBefore returns the last limit messages with Seq < beforeSeq. A zero
// beforeSeq means no upper bound.
func (s *MemoryStore) HistoryBefore(ctx context.Context, documentID string, beforeSeq int64, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Message{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.byDoc[documentID]
	end := len(msgs)
	if beforeSeq > 0 {
		for end > 0 && msgs[end-1].Seq >= beforeSeq {
			end--
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	out := make([]Message, end-start)
	copy(out, msgs[start:end])
	return out, nil
}

// ListPage returns messages newest first below cursor.
func (s *MemoryStore) ListPage(ctx context.Context, documentID, cursor string, limit int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	before, err := decodeCursor(cursor)
	if err != nil {
		return Page{}, err
	}
	limit = NormalizePageLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.byDoc[documentID]
	page := Page{Messages: []Message{}}
	for i := len(msgs) - 1; i >= 0; i-- {
		if before > 0 && msgs[i].Seq >= before {
			continue
		}
		if len(page.Messages) == limit {
			page.NextCursor = encodeCursor(page.Messages[limit-1].Seq)
			break
		}
		page.Messages = append(page.Messages, msgs[i])
	}
	return page, nil
}

var _ Store = (*MemoryStore)(nil)
