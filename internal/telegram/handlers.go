package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/gitcord/internal/storage"
	"github.com/user/gitcord/pkg/logger"
)

// ServerStore records chats as servers. A chat id is both the server
// guild id and its notification channel id.
type ServerStore interface {
	UpsertServer(ctx context.Context, guildID, name string) (*storage.Server, error)
	GetServerByGuild(ctx context.Context, guildID string) (*storage.Server, error)
}

// Handlers manages command handling for the bot.
type Handlers struct {
	api       *tgbotapi.BotAPI
	store     ServerStore
	startTime time.Time
}

// NewHandlers creates a new handlers instance.
func NewHandlers(api *tgbotapi.BotAPI, store ServerStore, started time.Time) *Handlers {
	return &Handlers{
		api:       api,
		store:     store,
		startTime: started,
	}
}

// HandleCommand routes commands to appropriate handlers.
func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	command := msg.Command()

	logger.Debug().
		Str("command", command).
		Int64("chat_id", msg.Chat.ID).
		Msg("Received command")

	h.trackChat(ctx, msg.Chat)

	switch command {
	case "start":
		h.sendMarkdown(msg.Chat.ID, startText(msg.Chat.ID))
	case "help":
		h.sendMarkdown(msg.Chat.ID, helpText)
	case "chatid":
		h.sendMarkdown(msg.Chat.ID, fmt.Sprintf("This chat id is `%d`.", msg.Chat.ID))
	case "status":
		h.handleStatus(ctx, msg)
	default:
		h.sendMarkdown(msg.Chat.ID, "Unknown command. Use /help to list commands.")
	}
}

// trackChat stores the chat as an active server.
func (h *Handlers) trackChat(ctx context.Context, chat *tgbotapi.Chat) {
	if _, err := h.store.UpsertServer(ctx, strconv.FormatInt(chat.ID, 10), chatTitle(chat)); err != nil {
		logger.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to track chat")
	}
}

func chatTitle(chat *tgbotapi.Chat) string {
	if chat.Type != "private" {
		return chat.Title
	}
	title := chat.FirstName
	if chat.LastName != "" {
		title += " " + chat.LastName
	}
	return title
}

func startText(chatID int64) string {
	return fmt.Sprintf(`🤖 *GitHub notifications*

Link a repository to this chat with:
`+"`gitcord repo add --server %d --channel %d <url>`"+`

Then add a webhook in the repository settings pointing at `+"`/github-webhook`"+` with content type `+"`application/json`"+`.

Use /help to list commands.`, chatID, chatID)
}

const helpText = `📚 *Commands*

• ` + "`/chatid`" + ` - show the id to use as server and channel
• ` + "`/status`" + ` - uptime and messages delivered to this chat
• ` + "`/help`" + ` - this message`

func (h *Handlers) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	var sent int64
	srv, err := h.store.GetServerByGuild(ctx, strconv.FormatInt(msg.Chat.ID, 10))
	switch {
	case err == nil:
		sent = srv.MessagesSent
	case !errors.Is(err, storage.ErrNotFound):
		logger.Error().Err(err).Msg("Failed to load server")
	}

	text := fmt.Sprintf(`📊 *Bot status*

⏱️ *Uptime:* %s
📨 *Messages delivered here:* %d`, formatDuration(time.Since(h.startTime)), sent)

	h.sendMarkdown(msg.Chat.ID, text)
}

// formatDuration formats a duration to a human-readable string.
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	} else if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// sendMarkdown sends a markdown-formatted message.
func (h *Handlers) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := h.api.Send(msg); err != nil {
		logger.Error().Err(err).Msg("Failed to send markdown message")
	}
}
