// Package limits checks per-server repository and notification channel limits.
package limits

import (
	"context"
	"fmt"
)

// Unlimited is reported as MaxAllowed and Remaining when a limit is disabled.
const Unlimited = -1

// Store is the subset of the persistent store the guard needs.
type Store interface {
	CountRepositories(ctx context.Context, serverID int64) (int, error)
	ListExplicitChannels(ctx context.Context, serverID int64) ([]string, error)
}

// RepositoryStatus is the result of a repository limit check.
type RepositoryStatus struct {
	IsAtLimit    bool
	CurrentCount int
	MaxAllowed   int
	Remaining    int
}

// ChannelStatus is the result of a channel limit check.
type ChannelStatus struct {
	IsAtLimit      bool
	CurrentCount   int
	MaxAllowed     int
	PotentialCount int
	Remaining      int
}

// Guard evaluates resource limits for a server. A negative maximum disables the limit.
type Guard struct {
	store           Store
	maxRepositories int
	maxChannels     int
}

// NewGuard creates a new guard.
func NewGuard(store Store, maxRepositories, maxChannels int) *Guard {
	return &Guard{store: store, maxRepositories: maxRepositories, maxChannels: maxChannels}
}

// CheckRepositoryLimit reports whether the server can link another repository.
func (g *Guard) CheckRepositoryLimit(ctx context.Context, serverID int64) (RepositoryStatus, error) {
	count, err := g.store.CountRepositories(ctx, serverID)
	if err != nil {
		return RepositoryStatus{}, fmt.Errorf("failed to count repositories: %w", err)
	}
	if g.maxRepositories < 0 {
		return RepositoryStatus{CurrentCount: count, MaxAllowed: Unlimited, Remaining: Unlimited}, nil
	}
	return RepositoryStatus{
		IsAtLimit:    count >= g.maxRepositories,
		CurrentCount: count,
		MaxAllowed:   g.maxRepositories,
		Remaining:    max(g.maxRepositories-count, 0),
	}, nil
}

// CheckChannelLimit counts the distinct channels tracked branches of the
// server explicitly target. excludeChannelID is left out of the count (a
// channel being replaced); includeNewChannelID is added unless it is already
// counted. Without a new channel the server is at the limit when no slot is left;
// with one it is at the limit when adding it would exceed the maximum.
func (g *Guard) CheckChannelLimit(ctx context.Context, serverID int64, excludeChannelID, includeNewChannelID string) (ChannelStatus, error) {
	channels, err := g.store.ListExplicitChannels(ctx, serverID)
	if err != nil {
		return ChannelStatus{}, fmt.Errorf("failed to list channels: %w", err)
	}

	inUse := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		if ch == "" || ch == excludeChannelID {
			continue
		}
		inUse[ch] = struct{}{}
	}
	current := len(inUse)

	potential := current
	if includeNewChannelID != "" {
		if _, counted := inUse[includeNewChannelID]; !counted {
			potential++
		}
	}

	if g.maxChannels < 0 {
		return ChannelStatus{
			CurrentCount:   current,
			MaxAllowed:     Unlimited,
			PotentialCount: potential,
			Remaining:      Unlimited,
		}, nil
	}

	atLimit := current >= g.maxChannels
	if includeNewChannelID != "" {
		atLimit = potential > g.maxChannels
	}
	return ChannelStatus{
		IsAtLimit:      atLimit,
		CurrentCount:   current,
		MaxAllowed:     g.maxChannels,
		PotentialCount: potential,
		Remaining:      max(g.maxChannels-current, 0),
	}, nil
}
