// Package repository implements data persistence adapters
// Following Hexagonal Architecture: Adapters implement ports defined in core
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"woot-bridge/internal/core/domain"
	"woot-bridge/internal/core/ports"
)

// Ensure MySQLRepository implements the required interfaces
var _ ports.WebhookRepository = (*MySQLRepository)(nil)

// MySQLRepository persists the webhook audit log
type MySQLRepository struct {
	db *sql.DB
}

// NewMySQLRepository creates a new MySQL repository instance
func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{
		db: db,
	}
}

// SaveLog persists a webhook event to the audit log and returns the row id
func (r *MySQLRepository) SaveLog(ctx context.Context, log *domain.WebhookLog) (int64, error) {
	query := `
		INSERT INTO webhook_logs (platform, payload_json, status, retry_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		log.Platform,
		log.PayloadJSON,
		log.Status,
		log.RetryCount,
		log.CreatedAt,
	)
	if err != nil {
		slog.Error("Failed to save webhook log",
			"error", err,
			"platform", log.Platform,
		)
		return 0, fmt.Errorf("save webhook log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("webhook log insert id: %w", err)
	}

	slog.Debug("Webhook log saved",
		"webhook_id", id,
		"platform", log.Platform,
		"status", log.Status,
	)
	return id, nil
}

// UpdateStatus updates the processing status of a webhook log
func (r *MySQLRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `
		UPDATE webhook_logs
		SET status = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		slog.Error("Failed to update webhook status",
			"error", err,
			"webhook_id", id,
			"status", status,
		)
		return fmt.Errorf("update webhook status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		slog.Warn("No webhook log found for status update",
			"webhook_id", id,
		)
	}

	return nil
}

// PurgeProcessed deletes processed audit rows older than the retention
// window, at most limit rows per call
func (r *MySQLRepository) PurgeProcessed(ctx context.Context, olderThan time.Duration, limit int) (int64, error) {
	query := `
		DELETE FROM webhook_logs
		WHERE status = ?
		AND created_at < ?
		LIMIT ?
	`

	cutoff := time.Now().Add(-olderThan)
	result, err := r.db.ExecContext(ctx, query, domain.WebhookStatusProcessed, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("purge webhook logs: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return rows, nil
}
