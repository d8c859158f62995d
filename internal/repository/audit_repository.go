package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siswa-gateway/internal/models"
)

// AuditRepository persists bulk action outcomes.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateBulkActionLog inserts one audit row.
func (r *AuditRepository) CreateBulkActionLog(ctx context.Context, entry *models.BulkActionLog) error {
	const query = `INSERT INTO bulk_action_logs (id, view_id, user_id, action, status_filter, target_status, ids, id_count, outcome, error, created_at)
VALUES (:id, :view_id, :user_id, :action, :status_filter, :target_status, :ids, :id_count, :outcome, :error, :created_at)`
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create bulk action log: %w", err)
	}
	return nil
}

// ListBulkActionLogs returns the newest entries of a view, newest first.
func (r *AuditRepository) ListBulkActionLogs(ctx context.Context, viewID string, limit int) ([]models.BulkActionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, view_id, user_id, action, status_filter, target_status, ids, id_count, outcome, error, created_at
FROM bulk_action_logs WHERE view_id = $1 ORDER BY created_at DESC LIMIT $2`
	var logs []models.BulkActionLog
	if err := r.db.SelectContext(ctx, &logs, query, viewID, limit); err != nil {
		return nil, fmt.Errorf("list bulk action logs: %w", err)
	}
	return logs, nil
}

// Ping checks the audit database connection.
func (r *AuditRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
