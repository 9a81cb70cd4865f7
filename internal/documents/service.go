package documents

import (
	"context"
	"strings"

	"pdfchat-backend/internal/shared/apperr"
)

// Service exposes read access to a caller's documents.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Get returns one document owned by ownerID.
func (s *Service) Get(ctx context.Context, ownerID, id string) (Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Document{}, apperr.ErrAuthorization
	}
	if strings.TrimSpace(id) == "" {
		return Document{}, apperr.Validation("document id is required")
	}
	return s.Repo.FindForOwner(ctx, id, ownerID)
}

// List returns ownerID's documents newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.ErrAuthorization
	}
	return s.Repo.ListByOwner(ctx, ownerID, limit, offset)
}
