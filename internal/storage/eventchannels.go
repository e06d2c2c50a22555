package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// FindEventChannel returns the mapping for (repository, event type), or nil if none exists.
func (s *Store) FindEventChannel(ctx context.Context, repositoryID int64, eventType string) (*RepositoryEventChannel, error) {
	var ec RepositoryEventChannel
	query := `SELECT * FROM repository_event_channels WHERE repository_id = ? AND event_type = ? ORDER BY id LIMIT 1`
	err := s.db.GetContext(ctx, &ec, query, repositoryID, eventType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ec, nil
}

// InsertEventChannelIfAbsent creates the mapping unless one already exists for
// (repository, event type). It reports whether a row was inserted.
func (s *Store) InsertEventChannelIfAbsent(ctx context.Context, ec *RepositoryEventChannel) (bool, error) {
	query := `
		INSERT INTO repository_event_channels (repository_id, event_type, channel_id, config)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(repository_id, event_type) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query, ec.RepositoryID, ec.EventType, ec.ChannelID, ec.Config)
	if err != nil {
		return false, fmt.Errorf("failed to insert event channel: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertEventChannel creates or replaces the mapping for (repository, event type).
func (s *Store) UpsertEventChannel(ctx context.Context, ec *RepositoryEventChannel) error {
	query := `
		INSERT INTO repository_event_channels (repository_id, event_type, channel_id, config)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(repository_id, event_type) DO UPDATE SET
			channel_id = excluded.channel_id,
			config = excluded.config,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, ec.RepositoryID, ec.EventType, ec.ChannelID, ec.Config); err != nil {
		return fmt.Errorf("failed to upsert event channel: %w", err)
	}
	return nil
}

// DeleteEventChannel removes the mapping for (repository, event type).
func (s *Store) DeleteEventChannel(ctx context.Context, repositoryID int64, eventType string) error {
	query := `DELETE FROM repository_event_channels WHERE repository_id = ? AND event_type = ?`
	result, err := s.db.ExecContext(ctx, query, repositoryID, eventType)
	if err != nil {
		return err
	}
	return expectRows(result)
}

// ListEventChannels returns every event mapping of a repository.
func (s *Store) ListEventChannels(ctx context.Context, repositoryID int64) ([]RepositoryEventChannel, error) {
	var mappings []RepositoryEventChannel
	query := `SELECT * FROM repository_event_channels WHERE repository_id = ? ORDER BY event_type`
	err := s.db.SelectContext(ctx, &mappings, query, repositoryID)
	return mappings, err
}
