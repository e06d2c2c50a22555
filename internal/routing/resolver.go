// Package routing resolves the delivery channel and action filter for
// non-branch GitHub events.
package routing

import (
	"context"
	"fmt"

	"github.com/user/gitcord/internal/storage"
	"github.com/user/gitcord/pkg/logger"
)

// Store is the subset of the persistent store the resolver needs.
type Store interface {
	FindEventChannel(ctx context.Context, repositoryID int64, eventType string) (*storage.RepositoryEventChannel, error)
	InsertEventChannelIfAbsent(ctx context.Context, ec *storage.RepositoryEventChannel) (bool, error)
}

// Routing is the effective routing for one repository and event type.
type Routing struct {
	ChannelID string
	// Config is nil when the store could not be consulted.
	Config *Config
}

// Config is the merged action filter of an event mapping.
type Config struct {
	ActionsEnabled  map[string]bool
	ExplicitChannel bool
}

// Enabled reports whether action is switched on. Missing keys are off;
// defaults have already been merged in.
func (c *Config) Enabled(action string) bool {
	if c == nil {
		return false
	}
	return c.ActionsEnabled[action]
}

// Enabled reports whether action is switched on for this routing. When the
// store was unavailable the built-in defaults of eventType apply.
func (r Routing) Enabled(eventType, action string) bool {
	if r.Config == nil {
		return DefaultActions(eventType)[action]
	}
	return r.Config.Enabled(action)
}

// Deliverable reports whether the routing names a real channel.
func (r Routing) Deliverable() bool {
	return r.ChannelID != "" && r.ChannelID != storage.ChannelPending && r.ChannelID != storage.ChannelDefault
}

// Resolver computes event routing, provisioning default mappings on first use.
type Resolver struct {
	store Store
}

// NewResolver creates a new resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the effective channel and merged config for eventType.
// fallbackChannelID is the repository default channel, possibly empty.
//
// Resolve is get-or-create: the first call for a (repository, event type)
// pair without a mapping persists one with computed defaults. Store failures
// degrade to the fallback channel with a nil config and are never returned.
func (r *Resolver) Resolve(ctx context.Context, repositoryID int64, eventType, fallbackChannelID string) Routing {
	ec, err := r.getOrCreate(ctx, repositoryID, eventType)
	if err != nil {
		logger.Warn().
			Err(err).
			Int64("repository_id", repositoryID).
			Str("event_type", eventType).
			Msg("Event routing unavailable, using fallback channel")
		return Routing{ChannelID: orPending(fallbackChannelID)}
	}

	cfg := &Config{
		ActionsEnabled:  MergeActions(eventType, ec.Config.ActionsEnabled),
		ExplicitChannel: ec.Config.ExplicitChannel,
	}
	return Routing{
		ChannelID: effectiveChannel(ec.ChannelID, fallbackChannelID, ec.Config.ExplicitChannel),
		Config:    cfg,
	}
}

func (r *Resolver) getOrCreate(ctx context.Context, repositoryID int64, eventType string) (*storage.RepositoryEventChannel, error) {
	ec, err := r.store.FindEventChannel(ctx, repositoryID, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to find event channel: %w", err)
	}
	if ec != nil {
		return ec, nil
	}

	created := &storage.RepositoryEventChannel{
		RepositoryID: repositoryID,
		EventType:    eventType,
		ChannelID:    storage.ChannelDefault,
		Config: storage.EventConfig{
			ActionsEnabled:  DefaultActions(eventType),
			ExplicitChannel: false,
		},
	}
	inserted, err := r.store.InsertEventChannelIfAbsent(ctx, created)
	if err != nil {
		return nil, err
	}
	if inserted {
		logger.Info().
			Int64("repository_id", repositoryID).
			Str("event_type", eventType).
			Msg("Provisioned default event routing")
	}

	// Re-read so a concurrent creator's row wins over our local copy.
	ec, err = r.store.FindEventChannel(ctx, repositoryID, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read event channel: %w", err)
	}
	if ec == nil {
		return created, nil
	}
	return ec, nil
}

func effectiveChannel(stored, fallback string, explicit bool) string {
	if stored == storage.ChannelDefault || (stored == fallback && !explicit) {
		return orPending(fallback)
	}
	if stored == "" {
		return orPending(fallback)
	}
	return stored
}

func orPending(channelID string) string {
	if channelID == "" {
		return storage.ChannelPending
	}
	return channelID
}
