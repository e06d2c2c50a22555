package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/user/gitcord/internal/storage"
	"github.com/user/gitcord/pkg/logger"
)

// ServerStore records guild membership.
type ServerStore interface {
	UpsertServer(ctx context.Context, guildID, name string) (*storage.Server, error)
	SetServerStatus(ctx context.Context, guildID string, status storage.ServerStatus) error
}

// Bot keeps the gateway connection open and mirrors guild joins and
// leaves into the server table.
type Bot struct {
	client *Client
	store  ServerStore
}

// NewBot creates a new bot for client.
func NewBot(client *Client, store ServerStore) *Bot {
	b := &Bot{client: client, store: store}
	client.session.AddHandler(b.onGuildCreate)
	client.session.AddHandler(b.onGuildDelete)
	return b
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.client.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}
	logger.Info().Str("user", b.client.session.State.User.Username).Msg("Discord bot connected")
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() {
	if err := b.client.session.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close discord session")
	}
	logger.Info().Msg("Discord bot stopped")
}

func (b *Bot) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	b.guildJoined(context.Background(), g.ID, g.Name)
}

func (b *Bot) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	// Unavailable guilds are outages, not removals.
	if g.Unavailable {
		return
	}
	b.guildLeft(context.Background(), g.ID)
}

func (b *Bot) guildJoined(ctx context.Context, guildID, name string) {
	if _, err := b.store.UpsertServer(ctx, guildID, name); err != nil {
		logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to record guild")
		return
	}
	logger.Info().Str("guild_id", guildID).Str("name", name).Msg("Guild active")
}

func (b *Bot) guildLeft(ctx context.Context, guildID string) {
	if err := b.store.SetServerStatus(ctx, guildID, storage.StatusInactive); err != nil {
		logger.Warn().Err(err).Str("guild_id", guildID).Msg("Failed to deactivate guild")
		return
	}
	logger.Info().Str("guild_id", guildID).Msg("Guild inactive")
}
