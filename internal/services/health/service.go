package health

import (
	"context"
	"database/sql"

	"pdfchat-backend/internal/shared/storage/db"
)

// Service encapsulates health-related checks.
type Service struct {
	db *sql.DB
}

// NewService constructs a health service. A nil db means the process runs on
// in-memory stores and the database check is skipped.
func NewService(sqlDB *sql.DB) *Service {
	return &Service{db: sqlDB}
}

// Status reports overall health and per-dependency results.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	payload := map[string]any{"ok": true}
	if s.db == nil {
		payload["database"] = "memory"
		return payload, true
	}
	if err := db.Ping(ctx, s.db); err != nil {
		payload["ok"] = false
		payload["database"] = "unreachable"
		return payload, false
	}
	payload["database"] = "ok"
	return payload, true
}
