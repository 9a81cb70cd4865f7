// Package subscriptions resolves a user's tier for quota decisions.
package subscriptions

import (
	"context"
	"strings"

	"pdfchat-backend/internal/quota"
	"pdfchat-backend/internal/shared/apperr"
)

type store interface {
	Get(ctx context.Context, userID string) (Plan, bool, error)
	Set(ctx context.Context, userID string, plan Plan) (Plan, error)
}

// Service looks up and records subscription plans.
type Service struct {
	store store
}

// NewService constructs a Service with an in-memory store.
func NewService() *Service {
	return &Service{store: newMemoryStore()}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store) *Service {
	return &Service{store: pgStore}
}

// Lookup returns the user's plan. Users without a record are on Free.
func (s *Service) Lookup(ctx context.Context, userID string) (Plan, error) {
	if strings.TrimSpace(userID) == "" {
		return Plan{}, apperr.ErrAuthorization
	}
	plan, ok, err := s.store.Get(ctx, userID)
	if err != nil {
		return Plan{}, err
	}
	if !ok {
		return freePlan(), nil
	}
	if !plan.IsSubscribed {
		plan.Tier = quota.TierFree
	}
	return plan, nil
}

// Tier is Lookup reduced to the tier name.
func (s *Service) Tier(ctx context.Context, userID string) (string, error) {
	plan, err := s.Lookup(ctx, userID)
	if err != nil {
		return "", err
	}
	return plan.Tier, nil
}

// Set records a plan. Payment webhooks are handled upstream; this is used
// by the dev endpoint and operational tooling.
func (s *Service) Set(ctx context.Context, userID string, plan Plan) (Plan, error) {
	if strings.TrimSpace(userID) == "" {
		return Plan{}, apperr.ErrAuthorization
	}
	plan.Tier = strings.TrimSpace(plan.Tier)
	if plan.Tier == "" || !plan.IsSubscribed {
		plan.Tier = quota.TierFree
	}
	return s.store.Set(ctx, userID, plan)
}
