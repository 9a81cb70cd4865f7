package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu    sync.RWMutex
	byID  map[string]*Document
	byKey map[string]string // storageKey+"\x00"+ownerID -> id
	now   func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:  make(map[string]*Document),
		byKey: make(map[string]string),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func uniqueKey(storageKey, ownerID string) string {
	return storageKey + "\x00" + ownerID
}

// CreateIfAbsent stores doc unless its (storageKey, ownerID) pair exists.
func (r *MemoryRepo) CreateIfAbsent(ctx context.Context, doc Document) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := uniqueKey(doc.StorageKey, doc.OwnerID)
	if id, ok := r.byKey[key]; ok {
		return *r.byID[id], false, nil
	}
	now := r.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = doc.CreatedAt
	if doc.UploadStatus == "" {
		doc.UploadStatus = StatusProcessing
	}
	stored := doc
	r.byID[doc.ID] = &stored
	r.byKey[key] = doc.ID
	return doc, true, nil
}

// FindForOwner returns the document if ownerID owns it.
func (r *MemoryRepo) FindForOwner(ctx context.Context, id, ownerID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[id]
	if !ok || doc.OwnerID != ownerID {
		return Document{}, ErrNotFound
	}
	return *doc, nil
}

// ListByOwner returns documents for an owner, newest first, honoring limit/offset.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	docs := make([]Document, 0)
	for _, d := range r.byID {
		if d.OwnerID == ownerID {
			docs = append(docs, *d)
		}
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if offset >= len(docs) {
		return []Document{}, nil
	}
	end := len(docs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return docs[offset:end], nil
}

// Transition applies update if the document is still PROCESSING.
func (r *MemoryRepo) Transition(ctx context.Context, id string, update StatusUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if err := CheckTransition(doc.UploadStatus, update.Status); err != nil {
		return err
	}
	doc.UploadStatus = update.Status
	doc.PageCount = update.PageCount
	doc.FailureReason = update.FailureReason
	doc.UpdatedAt = r.now()
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
