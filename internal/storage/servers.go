package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertServer creates or re-activates the server for a guild.
// An empty name keeps the stored one.
func (s *Store) UpsertServer(ctx context.Context, guildID, name string) (*Server, error) {
	query := `
		INSERT INTO servers (guild_id, name, status)
		VALUES (?, ?, 'ACTIVE')
		ON CONFLICT(guild_id) DO UPDATE SET
			name = CASE WHEN excluded.name = '' THEN servers.name ELSE excluded.name END,
			status = 'ACTIVE',
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, guildID, name); err != nil {
		return nil, fmt.Errorf("failed to upsert server: %w", err)
	}
	return s.GetServerByGuild(ctx, guildID)
}

// GetServerByGuild returns the server for a guild id.
func (s *Store) GetServerByGuild(ctx context.Context, guildID string) (*Server, error) {
	var srv Server
	err := s.db.GetContext(ctx, &srv, `SELECT * FROM servers WHERE guild_id = ?`, guildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &srv, nil
}

// SetServerStatus flips a server between ACTIVE and INACTIVE.
func (s *Store) SetServerStatus(ctx context.Context, guildID string, status ServerStatus) error {
	query := `UPDATE servers SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE guild_id = ?`
	result, err := s.db.ExecContext(ctx, query, status, guildID)
	if err != nil {
		return err
	}
	return expectRows(result)
}

// IncrementMessagesSent atomically adds n to the server's message counter.
func (s *Store) IncrementMessagesSent(ctx context.Context, serverID int64, n int) error {
	query := `UPDATE servers SET messages_sent = messages_sent + ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, n, serverID)
	if err != nil {
		return err
	}
	return expectRows(result)
}

// ListServers returns every known server.
func (s *Store) ListServers(ctx context.Context) ([]Server, error) {
	var servers []Server
	err := s.db.SelectContext(ctx, &servers, `SELECT * FROM servers ORDER BY id`)
	return servers, err
}

// MessageCounts returns the message counter of every server.
func (s *Store) MessageCounts(ctx context.Context) ([]MessageCount, error) {
	counts := []MessageCount{}
	err := s.db.SelectContext(ctx, &counts, `SELECT guild_id, messages_sent FROM servers ORDER BY id`)
	return counts, err
}

func expectRows(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
