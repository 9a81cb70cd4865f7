package documents

import "context"

// StatusUpdate carries the terminal status and its details.
type StatusUpdate struct {
	Status        UploadStatus
	PageCount     int
	FailureReason string
}

// Repo defines persistence operations for documents.
type Repo interface {
	// CreateIfAbsent inserts doc unless a row with the same (StorageKey,
	// OwnerID) exists. It returns the stored row and whether it was created.
	CreateIfAbsent(ctx context.Context, doc Document) (Document, bool, error)
	// FindForOwner returns ErrNotFound for missing and foreign documents alike.
	FindForOwner(ctx context.Context, id, ownerID string) (Document, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Document, error)
	// Transition applies update only while the document is PROCESSING.
	Transition(ctx context.Context, id string, update StatusUpdate) error
}
