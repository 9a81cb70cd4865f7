package vectorindex

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"pdfchat-backend/internal/shared/apperr"
)

// upsertChunk bounds rows per INSERT to stay well under the Postgres
// parameter limit.
const upsertChunk = 100

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGIndex stores passages in the pgvector-enabled passages table.
type PGIndex struct {
	db *sql.DB
}

// NewPGIndex returns an index backed by db.
func NewPGIndex(db *sql.DB) *PGIndex {
	return &PGIndex{db: db}
}

// Upsert inserts passages, replacing text and vector for pages already
// present. Replaced rows keep their seq, so insertion order is preserved.
func (p *PGIndex) Upsert(ctx context.Context, partition string, passages []Passage) error {
	for start := 0; start < len(passages); start += upsertChunk {
		end := start + upsertChunk
		if end > len(passages) {
			end = len(passages)
		}
		insert := psql.Insert("passages").
			Columns("document_id", "page_number", "content", "embedding").
			Suffix("ON CONFLICT (document_id, page_number) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding")
		for _, passage := range passages[start:end] {
			insert = insert.Values(partition, passage.Page, passage.Text, pgvector.NewVector(passage.Vector))
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build upsert: %w", err)
		}
		if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
			return apperr.Upstream(apperr.ErrIndex, "upsert passages", err)
		}
	}
	return nil
}

// Query orders by cosine distance, then by seq for ties.
func (p *PGIndex) Query(ctx context.Context, partition string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	vec := pgvector.NewVector(vector)
	query, args, err := psql.
		Select("page_number", "content").
		Column(sq.Expr("1 - (embedding <=> ?)", vec)).
		From("passages").
		Where(sq.Eq{"document_id": partition}).
		OrderByClause("embedding <=> ?, seq", vec).
		Limit(uint64(k)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Upstream(apperr.ErrIndex, "query passages", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Page, &m.Text, &m.Score); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Upstream(apperr.ErrIndex, "query passages", err)
	}
	return out, nil
}

// DeletePartition removes every passage of the document.
func (p *PGIndex) DeletePartition(ctx context.Context, partition string) error {
	query, args, err := psql.Delete("passages").Where(sq.Eq{"document_id": partition}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return apperr.Upstream(apperr.ErrIndex, "delete passages", err)
	}
	return nil
}

// Count returns the number of passages stored for the document.
func (p *PGIndex) Count(ctx context.Context, partition string) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From("passages").Where(sq.Eq{"document_id": partition}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperr.Upstream(apperr.ErrIndex, "count passages", err)
	}
	return n, nil
}

var _ Index = (*PGIndex)(nil)
