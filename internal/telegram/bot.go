// Package telegram provides Telegram bot functionality.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/gitcord/internal/chat"
	"github.com/user/gitcord/pkg/logger"
)

// Bot represents the Telegram bot.
type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *Handlers
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewBot creates a new Telegram bot instance.
func NewBot(token string, debug bool, store ServerStore) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	api.Debug = debug

	logger.Info().Str("username", api.Self.UserName).Msg("Telegram bot authorized")

	ctx, cancel := context.WithCancel(context.Background())

	return &Bot{
		api:      api,
		handlers: NewHandlers(api, store, time.Now()),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Client returns a chat.Client delivering through this bot.
func (b *Bot) Client() *Client {
	return &Client{api: b.api}
}

// Start begins listening for updates.
func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.ctx.Done():
				return
			case update := <-updates:
				if update.Message != nil && update.Message.IsCommand() {
					b.handlers.HandleCommand(b.ctx, update.Message)
				}
			}
		}
	}()

	logger.Info().Msg("Telegram bot started, listening for updates")
}

// Stop gracefully stops the bot.
func (b *Bot) Stop() {
	logger.Info().Msg("Stopping Telegram bot")
	b.cancel()
	b.api.StopReceivingUpdates()
	b.wg.Wait()
}

// Client adapts the Bot API to chat.Client. Channel ids are chat ids.
type Client struct {
	api *tgbotapi.BotAPI
}

// FetchChannel implements chat.Client.
func (c *Client) FetchChannel(_ context.Context, channelID string) (chat.Channel, error) {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return nil, chat.ErrChannelNotFound
	}
	info, err := c.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: id}})
	if err != nil {
		if isChatNotFound(err) {
			return nil, chat.ErrChannelNotFound
		}
		return nil, err
	}
	return &channel{api: c.api, chat: info}, nil
}

type channel struct {
	api  *tgbotapi.BotAPI
	chat tgbotapi.Chat
}

func (c *channel) ID() string { return strconv.FormatInt(c.chat.ID, 10) }

// Every Telegram chat type accepts text messages.
func (c *channel) IsTextBased() bool { return c.chat.Type != "" }

func (c *channel) Send(_ context.Context, msg chat.Message) (chat.MessageHandle, error) {
	out := tgbotapi.NewMessage(c.chat.ID, RenderMarkdown(msg))
	out.ParseMode = tgbotapi.ModeMarkdown
	out.DisableWebPagePreview = true

	sent, err := c.api.Send(out)
	if err != nil {
		logger.Error().Err(err).Int64("chat_id", c.chat.ID).Msg("Failed to send message")
		return chat.MessageHandle{}, err
	}
	return chat.MessageHandle{ID: strconv.Itoa(sent.MessageID), ChannelID: c.ID()}, nil
}

func isChatNotFound(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(strings.ToLower(apiErr.Message), "chat not found")
	}
	return false
}
