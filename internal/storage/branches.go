package storage

import (
	"context"
	"fmt"
)

// AddTrackedBranch stores a branch pattern for a repository. Adding an
// identical (pattern, channel) pair again is a no-op.
func (s *Store) AddTrackedBranch(ctx context.Context, repositoryID int64, pattern, channelID string) error {
	query := `
		INSERT INTO tracked_branches (repository_id, branch_name, channel_id)
		VALUES (?, ?, ?)
		ON CONFLICT(repository_id, branch_name, channel_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, repositoryID, pattern, channelID); err != nil {
		return fmt.Errorf("failed to track branch: %w", err)
	}
	return nil
}

// RemoveTrackedBranch deletes one tracked (pattern, channel) pair.
func (s *Store) RemoveTrackedBranch(ctx context.Context, repositoryID int64, pattern, channelID string) error {
	query := `DELETE FROM tracked_branches WHERE repository_id = ? AND branch_name = ? AND channel_id = ?`
	result, err := s.db.ExecContext(ctx, query, repositoryID, pattern, channelID)
	if err != nil {
		return err
	}
	return expectRows(result)
}

// ListTrackedBranches returns every tracked branch of a repository.
func (s *Store) ListTrackedBranches(ctx context.Context, repositoryID int64) ([]TrackedBranch, error) {
	var branches []TrackedBranch
	query := `SELECT * FROM tracked_branches WHERE repository_id = ? ORDER BY id`
	err := s.db.SelectContext(ctx, &branches, query, repositoryID)
	return branches, err
}

// ListExplicitChannels returns the distinct channels that tracked branches of
// a server's repositories explicitly target. Repository default channels are
// not included unless a tracked branch names them.
func (s *Store) ListExplicitChannels(ctx context.Context, serverID int64) ([]string, error) {
	channels := []string{}
	query := `
		SELECT DISTINCT tb.channel_id
		FROM tracked_branches tb
		JOIN repositories r ON r.id = tb.repository_id
		WHERE r.server_id = ? AND tb.channel_id <> ''
		ORDER BY tb.channel_id
	`
	err := s.db.SelectContext(ctx, &channels, query, serverID)
	return channels, err
}
