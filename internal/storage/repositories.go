package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// NormalizeURL strips trailing slashes and a trailing ".git" from a repository URL.
func NormalizeURL(url string) string {
	u := strings.TrimSpace(url)
	for {
		trimmed := strings.TrimSuffix(strings.TrimSuffix(u, "/"), ".git")
		if trimmed == u {
			return u
		}
		u = trimmed
	}
}

// URLVariants returns the equivalent spellings of a repository URL used for lookup.
func URLVariants(url string) []string {
	base := NormalizeURL(url)
	return []string{base, base + ".git", base + "/", base + ".git/"}
}

// UpsertRepository links a URL to a server or re-configures an existing link.
// An empty channelID or secret leaves the stored value untouched on update.
func (s *Store) UpsertRepository(ctx context.Context, serverID int64, url, channelID, secret string) (*Repository, error) {
	canonical := NormalizeURL(url)
	if existing, err := s.GetRepository(ctx, serverID, url); err == nil {
		query := `
			UPDATE repositories SET
				url = ?,
				channel_id = CASE WHEN ? = '' THEN channel_id ELSE ? END,
				webhook_secret = CASE WHEN ? = '' THEN webhook_secret ELSE ? END,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`
		if _, err := s.db.ExecContext(ctx, query, canonical, channelID, channelID, secret, secret, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to update repository: %w", err)
		}
		return s.getRepositoryByID(ctx, existing.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	query := `INSERT INTO repositories (server_id, url, channel_id, webhook_secret) VALUES (?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query, serverID, canonical, channelID, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.getRepositoryByID(ctx, id)
}

// GetRepository returns the repository of a server matching any variant of url.
func (s *Store) GetRepository(ctx context.Context, serverID int64, url string) (*Repository, error) {
	query, args, err := sqlx.In(`SELECT * FROM repositories WHERE server_id = ? AND url IN (?) ORDER BY id LIMIT 1`,
		serverID, URLVariants(url))
	if err != nil {
		return nil, err
	}
	var repo Repository
	err = s.db.GetContext(ctx, &repo, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

func (s *Store) getRepositoryByID(ctx context.Context, id int64) (*Repository, error) {
	var repo Repository
	err := s.db.GetContext(ctx, &repo, `SELECT * FROM repositories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

// FindRepositoriesByURL returns every repository, across all servers, linked to url.
func (s *Store) FindRepositoriesByURL(ctx context.Context, url string) ([]RepositoryWithServer, error) {
	query, args, err := sqlx.In(`
		SELECT
			r.id, r.server_id, r.url, r.channel_id, r.webhook_secret, r.created_at, r.updated_at,
			s.id AS "server.id",
			s.guild_id AS "server.guild_id",
			s.name AS "server.name",
			s.status AS "server.status",
			s.messages_sent AS "server.messages_sent",
			s.created_at AS "server.created_at",
			s.updated_at AS "server.updated_at"
		FROM repositories r
		JOIN servers s ON s.id = r.server_id
		WHERE r.url IN (?)
		ORDER BY r.id
	`, URLVariants(url))
	if err != nil {
		return nil, err
	}
	var repos []RepositoryWithServer
	if err := s.db.SelectContext(ctx, &repos, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to find repositories: %w", err)
	}
	return repos, nil
}

// ListRepositories returns every repository of a server.
func (s *Store) ListRepositories(ctx context.Context, serverID int64) ([]Repository, error) {
	var repos []Repository
	err := s.db.SelectContext(ctx, &repos, `SELECT * FROM repositories WHERE server_id = ? ORDER BY id`, serverID)
	return repos, err
}

// CountRepositories returns the number of repositories linked to a server.
func (s *Store) CountRepositories(ctx context.Context, serverID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM repositories WHERE server_id = ?`, serverID)
	return count, err
}

// DeleteRepository removes a repository with its tracked branches and event mappings.
func (s *Store) DeleteRepository(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRows(result)
}
