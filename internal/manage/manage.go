// Package manage implements the configuration changes issued by the
// command layer: linking repositories, tracking branches and routing events.
package manage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/user/gitcord/internal/branch"
	"github.com/user/gitcord/internal/github"
	"github.com/user/gitcord/internal/limits"
	"github.com/user/gitcord/internal/routing"
	"github.com/user/gitcord/internal/storage"
	"github.com/user/gitcord/pkg/logger"
)

var (
	// ErrRepositoryLimit is returned when a server cannot link another repository.
	ErrRepositoryLimit = errors.New("repository limit reached")
	// ErrChannelLimit is returned when a new notification channel would exceed the limit.
	ErrChannelLimit = errors.New("notification channel limit reached")
	// ErrInvalidPattern is returned for unsupported branch patterns.
	ErrInvalidPattern = errors.New("invalid branch pattern")
	// ErrUnknownEvent is returned for event types without routing.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrRepositoryMissing is returned when GitHub reports no such repository.
	ErrRepositoryMissing = errors.New("repository does not exist or is not accessible")
)

// Store is the persistent store used by the service.
type Store interface {
	UpsertServer(ctx context.Context, guildID, name string) (*storage.Server, error)
	GetServerByGuild(ctx context.Context, guildID string) (*storage.Server, error)
	ListServers(ctx context.Context) ([]storage.Server, error)
	MessageCounts(ctx context.Context) ([]storage.MessageCount, error)

	UpsertRepository(ctx context.Context, serverID int64, url, channelID, secret string) (*storage.Repository, error)
	GetRepository(ctx context.Context, serverID int64, url string) (*storage.Repository, error)
	ListRepositories(ctx context.Context, serverID int64) ([]storage.Repository, error)
	DeleteRepository(ctx context.Context, id int64) error

	AddTrackedBranch(ctx context.Context, repositoryID int64, pattern, channelID string) error
	RemoveTrackedBranch(ctx context.Context, repositoryID int64, pattern, channelID string) error
	ListTrackedBranches(ctx context.Context, repositoryID int64) ([]storage.TrackedBranch, error)

	FindEventChannel(ctx context.Context, repositoryID int64, eventType string) (*storage.RepositoryEventChannel, error)
	UpsertEventChannel(ctx context.Context, ec *storage.RepositoryEventChannel) error
	DeleteEventChannel(ctx context.Context, repositoryID int64, eventType string) error
	ListEventChannels(ctx context.Context, repositoryID int64) ([]storage.RepositoryEventChannel, error)
}

// Limiter checks per-server resource limits.
type Limiter interface {
	CheckRepositoryLimit(ctx context.Context, serverID int64) (limits.RepositoryStatus, error)
	CheckChannelLimit(ctx context.Context, serverID int64, excludeChannelID, includeNewChannelID string) (limits.ChannelStatus, error)
}

// RepoLookup fetches a repository from GitHub.
type RepoLookup interface {
	GetRepository(ctx context.Context, owner, repo string) (*github.RepoInfo, error)
}

// Service applies configuration changes.
type Service struct {
	store  Store
	limits Limiter
	repos  RepoLookup
}

// NewService creates a new service. repos may be nil to skip the GitHub lookup.
func NewService(store Store, limiter Limiter, repos RepoLookup) *Service {
	return &Service{store: store, limits: limiter, repos: repos}
}

// SetupRepository links url to the server of guildID or updates an existing
// link. Empty channel or secret keep the stored values. New repositories are
// stored under the URL GitHub reports, so deliveries match its casing.
func (s *Service) SetupRepository(ctx context.Context, guildID, url, channelID, secret string) (*storage.Repository, error) {
	owner, name, err := github.ParseRepositoryURL(url)
	if err != nil {
		return nil, err
	}
	canonical := canonicalURL(owner, name)

	srv, err := s.store.UpsertServer(ctx, guildID, "")
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetRepository(ctx, srv.ID, canonical)
	switch {
	case err == nil:
		canonical = existing.URL
	case errors.Is(err, storage.ErrNotFound):
		status, err := s.limits.CheckRepositoryLimit(ctx, srv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check repository limit: %w", err)
		}
		if status.IsAtLimit {
			return nil, fmt.Errorf("%w: %d of %d used", ErrRepositoryLimit, status.CurrentCount, status.MaxAllowed)
		}
		if canonical, err = s.lookup(ctx, owner, name); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	repo, err := s.store.UpsertRepository(ctx, srv.ID, canonical, channelID, secret)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("guild_id", guildID).Str("repo", repo.URL).Msg("Repository configured")
	return repo, nil
}

// lookup confirms owner/name exists and returns its URL in GitHub's casing.
func (s *Service) lookup(ctx context.Context, owner, name string) (string, error) {
	if s.repos == nil {
		return canonicalURL(owner, name), nil
	}
	info, err := s.repos.GetRepository(ctx, owner, name)
	if errors.Is(err, github.ErrRepositoryNotFound) {
		return "", fmt.Errorf("%w: %s/%s", ErrRepositoryMissing, owner, name)
	}
	if err != nil {
		return "", err
	}
	if info.URL != "" {
		return storage.NormalizeURL(info.URL), nil
	}
	return canonicalURL(info.Owner, info.Name), nil
}

// ListRepositories returns the repositories linked to guildID.
func (s *Service) ListRepositories(ctx context.Context, guildID string) ([]storage.Repository, error) {
	srv, err := s.store.GetServerByGuild(ctx, guildID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListRepositories(ctx, srv.ID)
}

// RemoveRepository unlinks url, dropping its branches and event routing.
func (s *Service) RemoveRepository(ctx context.Context, guildID, url string) error {
	repo, err := s.repository(ctx, guildID, url)
	if err != nil {
		return err
	}
	return s.store.DeleteRepository(ctx, repo.ID)
}

// TrackBranch routes pushes on branches matching pattern to channelID, or
// to the repository default channel when channelID is empty.
func (s *Service) TrackBranch(ctx context.Context, guildID, url, pattern, channelID string) error {
	if !branch.IsValidPattern(pattern) {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	repo, err := s.repository(ctx, guildID, url)
	if err != nil {
		return err
	}

	if channelID != "" {
		status, err := s.limits.CheckChannelLimit(ctx, repo.ServerID, "", channelID)
		if err != nil {
			return fmt.Errorf("failed to check channel limit: %w", err)
		}
		if status.IsAtLimit {
			return fmt.Errorf("%w: %d of %d channels", ErrChannelLimit, status.PotentialCount, status.MaxAllowed)
		}
	}
	return s.store.AddTrackedBranch(ctx, repo.ID, pattern, channelID)
}

// UntrackBranch removes a tracked branch.
func (s *Service) UntrackBranch(ctx context.Context, guildID, url, pattern, channelID string) error {
	repo, err := s.repository(ctx, guildID, url)
	if err != nil {
		return err
	}
	return s.store.RemoveTrackedBranch(ctx, repo.ID, pattern, channelID)
}

// BranchInfo is a tracked branch with a readable description.
type BranchInfo struct {
	Pattern     string
	ChannelID   string
	Description string
}

// ListBranches returns the tracked branches of url.
func (s *Service) ListBranches(ctx context.Context, guildID, url string) ([]BranchInfo, error) {
	repo, err := s.repository(ctx, guildID, url)
	if err != nil {
		return nil, err
	}
	tracked, err := s.store.ListTrackedBranches(ctx, repo.ID)
	if err != nil {
		return nil, err
	}
	out := make([]BranchInfo, 0, len(tracked))
	for _, tb := range tracked {
		channel := tb.ChannelID
		if channel == "" {
			channel = repo.ChannelID
		}
		out = append(out, BranchInfo{
			Pattern:     tb.Pattern,
			ChannelID:   channel,
			Description: branch.Describe(tb.Pattern),
		})
	}
	return out, nil
}

// SetEventChannel routes eventType to channelID and overlays actions on the
// stored action filter. An empty channelID follows the repository default.
func (s *Service) SetEventChannel(ctx context.Context, guildID, url, eventType, channelID string, actions map[string]bool) error {
	if !routing.Known(eventType) {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
	}
	repo, err := s.repository(ctx, guildID, url)
	if err != nil {
		return err
	}

	current, err := s.store.FindEventChannel(ctx, repo.ID, eventType)
	if err != nil {
		return err
	}
	stored := map[string]bool{}
	if current != nil {
		stored = current.Config.ActionsEnabled
	}
	merged := routing.MergeActions(eventType, stored)
	for action, enabled := range actions {
		merged[action] = enabled
	}

	ec := &storage.RepositoryEventChannel{
		RepositoryID: repo.ID,
		EventType:    eventType,
		ChannelID:    storage.ChannelDefault,
		Config:       storage.EventConfig{ActionsEnabled: merged},
	}
	if channelID != "" {
		ec.ChannelID = channelID
		ec.Config.ExplicitChannel = true
	}
	return s.store.UpsertEventChannel(ctx, ec)
}

// ClearEventChannel drops the routing of eventType. The next event
// provisions a fresh mapping with defaults.
func (s *Service) ClearEventChannel(ctx context.Context, guildID, url, eventType string) error {
	repo, err := s.repository(ctx, guildID, url)
	if err != nil {
		return err
	}
	return s.store.DeleteEventChannel(ctx, repo.ID, eventType)
}

// EventRoute is the stored routing of one event type.
type EventRoute struct {
	EventType string
	ChannelID string
	Explicit  bool
	Enabled   []string
}

// ListEventChannels returns the event routing of url.
func (s *Service) ListEventChannels(ctx context.Context, guildID, url string) ([]EventRoute, error) {
	repo, err := s.repository(ctx, guildID, url)
	if err != nil {
		return nil, err
	}
	mappings, err := s.store.ListEventChannels(ctx, repo.ID)
	if err != nil {
		return nil, err
	}
	out := make([]EventRoute, 0, len(mappings))
	for _, m := range mappings {
		route := EventRoute{EventType: m.EventType, ChannelID: m.ChannelID, Explicit: m.Config.ExplicitChannel}
		for action, on := range routing.MergeActions(m.EventType, m.Config.ActionsEnabled) {
			if on {
				route.Enabled = append(route.Enabled, action)
			}
		}
		sort.Strings(route.Enabled)
		out = append(out, route)
	}
	return out, nil
}

// ListServers returns every known server, active or not.
func (s *Service) ListServers(ctx context.Context) ([]storage.Server, error) {
	return s.store.ListServers(ctx)
}

// MessageCounts returns the message counter of every server.
func (s *Service) MessageCounts(ctx context.Context) ([]storage.MessageCount, error) {
	return s.store.MessageCounts(ctx)
}

func canonicalURL(owner, name string) string {
	return fmt.Sprintf("https://github.com/%s/%s", owner, name)
}

func (s *Service) repository(ctx context.Context, guildID, url string) (*storage.Repository, error) {
	owner, name, err := github.ParseRepositoryURL(url)
	if err != nil {
		return nil, err
	}
	srv, err := s.store.GetServerByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("server %s: %w", guildID, err)
	}
	repo, err := s.store.GetRepository(ctx, srv.ID, canonicalURL(owner, name))
	if err != nil {
		return nil, fmt.Errorf("repository %s: %w", url, err)
	}
	return repo, nil
}
