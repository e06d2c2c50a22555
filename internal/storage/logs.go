package storage

import (
	"context"
	"fmt"
)

// InsertErrorLog appends an error record.
func (s *Store) InsertErrorLog(ctx context.Context, e ErrorLog) error {
	query := `
		INSERT INTO error_logs
			(server_id, repository_id, event_type, action, message, processing_ms, user_agent, source_ip, delivery_id)
		VALUES
			(:server_id, :repository_id, :event_type, :action, :message, :processing_ms, :user_agent, :source_ip, :delivery_id)
	`
	if _, err := s.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("failed to insert error log: %w", err)
	}
	return nil
}

// InsertSystemLog appends an informational record.
func (s *Store) InsertSystemLog(ctx context.Context, l SystemLog) error {
	query := `
		INSERT INTO system_logs (level, message, server_id, repository_id, details)
		VALUES (:level, :message, :server_id, :repository_id, :details)
	`
	if _, err := s.db.NamedExecContext(ctx, query, l); err != nil {
		return fmt.Errorf("failed to insert system log: %w", err)
	}
	return nil
}

// InsertPerformance appends a timing record.
func (s *Store) InsertPerformance(ctx context.Context, p Performance) error {
	query := `
		INSERT INTO performance (operation, duration_ms, server_id, repository_id)
		VALUES (:operation, :duration_ms, :server_id, :repository_id)
	`
	if _, err := s.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to insert performance record: %w", err)
	}
	return nil
}

// ListErrorLogs returns the most recent error records.
func (s *Store) ListErrorLogs(ctx context.Context, limit int) ([]ErrorLog, error) {
	var logs []ErrorLog
	err := s.db.SelectContext(ctx, &logs, `SELECT * FROM error_logs ORDER BY id DESC LIMIT ?`, limit)
	return logs, err
}

// ListSystemLogs returns the most recent system records.
func (s *Store) ListSystemLogs(ctx context.Context, limit int) ([]SystemLog, error) {
	var logs []SystemLog
	err := s.db.SelectContext(ctx, &logs, `SELECT * FROM system_logs ORDER BY id DESC LIMIT ?`, limit)
	return logs, err
}

// MarkLimitWarning records that the channel-limit warning was shown in a
// channel. It returns true only for the first call per (server, channel).
func (s *Store) MarkLimitWarning(ctx context.Context, serverID int64, channelID string) (bool, error) {
	query := `INSERT OR IGNORE INTO limit_warnings (server_id, channel_id) VALUES (?, ?)`
	result, err := s.db.ExecContext(ctx, query, serverID, channelID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
