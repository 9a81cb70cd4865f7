package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed subscription store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) Get(ctx context.Context, userID string) (Plan, bool, error) {
	var p Plan
	err := s.DB.QueryRowContext(ctx, `
SELECT tier, is_subscribed, updated_at FROM user_subscriptions WHERE user_id = $1`, userID).
		Scan(&p.Tier, &p.IsSubscribed, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Plan{}, false, nil
		}
		return Plan{}, false, err
	}
	return p, true, nil
}

func (s *pgStore) Set(ctx context.Context, userID string, plan Plan) (Plan, error) {
	plan.UpdatedAt = time.Now().UTC()
	if _, err := s.DB.ExecContext(ctx, `
INSERT INTO user_subscriptions (user_id, tier, is_subscribed, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier, is_subscribed = EXCLUDED.is_subscribed, updated_at = EXCLUDED.updated_at`,
		userID, plan.Tier, plan.IsSubscribed, plan.UpdatedAt); err != nil {
		return Plan{}, err
	}
	return plan, nil
}
