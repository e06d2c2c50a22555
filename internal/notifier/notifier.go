// Package notifier delivers chat messages for webhook events.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/gitcord/internal/chat"
	"github.com/user/gitcord/internal/limits"
	"github.com/user/gitcord/internal/storage"
	"github.com/user/gitcord/pkg/logger"
)

// ErrNoChannel is returned when the target channel is unset or pending.
var ErrNoChannel = errors.New("no channel configured")

// ErrNotText is returned when the target channel cannot hold messages.
var ErrNotText = errors.New("channel is not text based")

// Store is the subset of the persistent store the notifier writes to.
type Store interface {
	IncrementMessagesSent(ctx context.Context, serverID int64, n int) error
	MarkLimitWarning(ctx context.Context, serverID int64, channelID string) (bool, error)
}

// ChannelLimiter checks the notification channel budget of a server.
type ChannelLimiter interface {
	CheckChannelLimit(ctx context.Context, serverID int64, excludeChannelID, includeNewChannelID string) (limits.ChannelStatus, error)
}

// Target names where a message goes.
type Target struct {
	ServerID  int64
	ChannelID string
	// SkipLimitCheck bypasses the channel limit warning.
	SkipLimitCheck bool
}

// Notifier sends notifications to chat channels.
type Notifier struct {
	client chat.Client
	store  Store
	limits ChannelLimiter
}

// NewNotifier creates a new notifier instance.
func NewNotifier(client chat.Client, store Store, limiter ChannelLimiter) *Notifier {
	return &Notifier{client: client, store: store, limits: limiter}
}

// Deliver sends msg to the target channel and bumps the server's message
// counter once on success. Failures are logged and returned; they never
// affect other deliveries.
func (n *Notifier) Deliver(ctx context.Context, target Target, msg chat.Message) (*chat.MessageHandle, error) {
	if target.ChannelID == "" || target.ChannelID == storage.ChannelPending || target.ChannelID == storage.ChannelDefault {
		return nil, ErrNoChannel
	}

	ch, err := n.fetch(ctx, target.ChannelID)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("channel_id", target.ChannelID).
			Int64("server_id", target.ServerID).
			Msg("Cannot deliver to channel")
		return nil, err
	}

	if !target.SkipLimitCheck {
		n.warnIfOverLimit(ctx, ch, target)
	}

	return n.send(ctx, ch, target.ServerID, msg)
}

func (n *Notifier) fetch(ctx context.Context, channelID string) (chat.Channel, error) {
	ch, err := n.client.FetchChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel %s: %w", channelID, err)
	}
	if ch == nil {
		return nil, chat.ErrChannelNotFound
	}
	if !ch.IsTextBased() {
		return nil, ErrNotText
	}
	return ch, nil
}

func (n *Notifier) send(ctx context.Context, ch chat.Channel, serverID int64, msg chat.Message) (*chat.MessageHandle, error) {
	handle, err := ch.Send(ctx, msg)
	if err != nil {
		logger.Error().
			Err(err).
			Str("channel_id", ch.ID()).
			Int64("server_id", serverID).
			Msg("Failed to send notification")
		return nil, fmt.Errorf("failed to send to channel %s: %w", ch.ID(), err)
	}

	if err := n.store.IncrementMessagesSent(ctx, serverID, 1); err != nil {
		logger.Warn().Err(err).Int64("server_id", serverID).Msg("Failed to increment message counter")
	}
	return &handle, nil
}

// warnIfOverLimit posts a one-time notice when the server's explicitly
// routed channels exceed its channel budget. Delivering to a channel never
// counts it; only tracked branches do. The delivery itself still goes ahead.
func (n *Notifier) warnIfOverLimit(ctx context.Context, ch chat.Channel, target Target) {
	if n.limits == nil {
		return
	}
	status, err := n.limits.CheckChannelLimit(ctx, target.ServerID, "", "")
	if err != nil {
		logger.Warn().Err(err).Int64("server_id", target.ServerID).Msg("Channel limit check failed")
		return
	}
	if !overLimit(status) {
		return
	}

	logger.Warn().
		Int64("server_id", target.ServerID).
		Str("channel_id", target.ChannelID).
		Int("channels", status.CurrentCount).
		Int("max", status.MaxAllowed).
		Msg("Server exceeds notification channel limit")

	first, err := n.store.MarkLimitWarning(ctx, target.ServerID, target.ChannelID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to record channel limit warning")
		return
	}
	if !first {
		return
	}
	if _, err := n.send(ctx, ch, target.ServerID, limitWarning(status)); err != nil {
		logger.Debug().Err(err).Msg("Channel limit warning not delivered")
	}
}

// overLimit reports a real breach. Being exactly at the limit is fine.
func overLimit(status limits.ChannelStatus) bool {
	return status.MaxAllowed != limits.Unlimited && status.CurrentCount > status.MaxAllowed
}

func limitWarning(status limits.ChannelStatus) chat.Message {
	return chat.Message{
		Title: "Notification channel limit reached",
		Description: fmt.Sprintf(
			"This server uses %d notification channels but the limit is %d. "+
				"Notifications will keep arriving here, but consider consolidating tracked branches into fewer channels.",
			status.CurrentCount, status.MaxAllowed),
		Color: chat.ColorOrange,
	}
}
