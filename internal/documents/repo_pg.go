package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, owner_id, storage_key, source_url, name, upload_status, page_count, failure_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var status string
	err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.StorageKey,
		&doc.SourceURL,
		&doc.Name,
		&status,
		&doc.PageCount,
		&doc.FailureReason,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	doc.UploadStatus = UploadStatus(status)
	return doc, err
}

// CreateIfAbsent inserts the document or returns the existing row for the
// same (storage_key, owner_id).
func (r *PGRepo) CreateIfAbsent(ctx context.Context, doc Document) (Document, bool, error) {
	const insert = `
INSERT INTO documents (id, owner_id, storage_key, source_url, name, upload_status, page_count, failure_reason, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, '', $7, $7)
ON CONFLICT (storage_key, owner_id) DO NOTHING
RETURNING ` + documentColumns

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UploadStatus == "" {
		doc.UploadStatus = StatusProcessing
	}

	created, err := scanDocument(r.DB.QueryRowContext(ctx, insert,
		doc.ID,
		doc.OwnerID,
		doc.StorageKey,
		doc.SourceURL,
		doc.Name,
		string(doc.UploadStatus),
		doc.CreatedAt,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Document{}, false, fmt.Errorf("insert document: %w", err)
	}

	const existing = `SELECT ` + documentColumns + ` FROM documents WHERE storage_key = $1 AND owner_id = $2`
	found, err := scanDocument(r.DB.QueryRowContext(ctx, existing, doc.StorageKey, doc.OwnerID))
	if err != nil {
		return Document{}, false, fmt.Errorf("load existing document: %w", err)
	}
	return found, false, nil
}

// FindForOwner fetches a document by ID for its owner.
func (r *PGRepo) FindForOwner(ctx context.Context, id, ownerID string) (Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND owner_id = $2`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// ListByOwner lists documents ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT ` + documentColumns + `
FROM documents
WHERE owner_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Transition writes a terminal status with a single guarded UPDATE.
func (r *PGRepo) Transition(ctx context.Context, id string, update StatusUpdate) error {
	if err := CheckTransition(StatusProcessing, update.Status); err != nil {
		return err
	}
	const query = `
UPDATE documents
SET upload_status = $1, page_count = $2, failure_reason = $3, updated_at = $4
WHERE id = $5 AND upload_status = 'PROCESSING'`
	res, err := r.DB.ExecContext(ctx, query,
		string(update.Status),
		update.PageCount,
		update.FailureReason,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var current string
	err = r.DB.QueryRowContext(ctx, `SELECT upload_status FROM documents WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load document status: %w", err)
	}
	return CheckTransition(UploadStatus(current), update.Status)
}

var _ Repo = (*PGRepo)(nil)
