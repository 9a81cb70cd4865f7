package messages

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PGStore persists messages in Postgres. Seq comes from a bigserial and
// orders messages within a document.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore constructs a PGStore.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

// Append inserts msg and returns it with server-assigned fields.
func (s *PGStore) Append(ctx context.Context, msg Message) (Message, error) {
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	msg.ID = uuid.NewString()
	const query = `
INSERT INTO messages (id, document_id, owner_id, author_is_user, text)
VALUES ($1, $2, $3, $4, $5)
RETURNING seq, created_at`
	if err := s.DB.QueryRowContext(ctx, query, msg.ID, msg.DocumentID, msg.OwnerID, msg.AuthorIsUser, msg.Text).
		Scan(&msg.Seq, &msg.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

// RecentHistory returns the last limit messages, oldest first.
func (s *PGStore) RecentHistory(ctx context.Context, documentID string, limit int) ([]Message, error) {
	return s.HistoryBefore(ctx, documentID, 0, limit)
}

// HistoryBefore returns the last limit messages with seq < beforeSeq.
func (s *PGStore) HistoryBefore(ctx context.Context, documentID string, beforeSeq int64, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	msgs, err := s.newestFirst(ctx, documentID, beforeSeq, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListPage returns messages newest first below cursor.
func (s *PGStore) ListPage(ctx context.Context, documentID, cursor string, limit int) (Page, error) {
	before, err := decodeCursor(cursor)
	if err != nil {
		return Page{}, err
	}
	limit = NormalizePageLimit(limit)
	msgs, err := s.newestFirst(ctx, documentID, before, limit+1)
	if err != nil {
		return Page{}, err
	}
	page := Page{Messages: msgs}
	if len(msgs) > limit {
		page.Messages = msgs[:limit]
		page.NextCursor = encodeCursor(msgs[limit-1].Seq)
	}
	return page, nil
}

func (s *PGStore) newestFirst(ctx context.Context, documentID string, beforeSeq int64, limit int) ([]Message, error) {
	const query = `
SELECT seq, id, document_id, owner_id, author_is_user, text, created_at
FROM messages
WHERE document_id = $1 AND ($2 = 0 OR seq < $2)
ORDER BY seq DESC
LIMIT $3`
	rows, err := s.DB.QueryContext(ctx, query, documentID, beforeSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Seq, &m.ID, &m.DocumentID, &m.OwnerID, &m.AuthorIsUser, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ Store = (*PGStore)(nil)
