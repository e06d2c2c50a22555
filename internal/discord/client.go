// Package discord delivers chat messages through a Discord bot session.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/user/gitcord/internal/chat"
)

// Client adapts a discordgo session to chat.Client.
type Client struct {
	session *discordgo.Session
}

// NewClient creates a Discord session for the bot token. The session is
// not connected until Bot.Start.
func NewClient(token string) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	return &Client{session: session}, nil
}

// Session returns the underlying session.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// FetchChannel implements chat.Client.
func (c *Client) FetchChannel(ctx context.Context, channelID string) (chat.Channel, error) {
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, chat.ErrChannelNotFound
		}
		return nil, err
	}
	return &channel{session: c.session, ch: ch}, nil
}

type channel struct {
	session *discordgo.Session
	ch      *discordgo.Channel
}

func (c *channel) ID() string { return c.ch.ID }

func (c *channel) IsTextBased() bool { return isTextChannel(c.ch.Type) }

func (c *channel) Send(ctx context.Context, msg chat.Message) (chat.MessageHandle, error) {
	sent, err := c.session.ChannelMessageSendComplex(c.ch.ID, toMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return chat.MessageHandle{}, chat.ErrChannelNotFound
		}
		return chat.MessageHandle{}, err
	}
	return chat.MessageHandle{ID: sent.ID, ChannelID: sent.ChannelID}, nil
}

func isTextChannel(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeDM,
		discordgo.ChannelTypeGroupDM,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return true
	}
	return false
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

// Discord rejects embeds over these sizes.
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFields      = 25
	maxFieldValue  = 1024
)

func toMessageSend(msg chat.Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.Title == "" && msg.Description == "" && len(msg.Fields) == 0 {
		return send
	}

	embed := &discordgo.MessageEmbed{
		Title:       clip(msg.Title, maxTitle),
		URL:         msg.URL,
		Description: clip(msg.Description, maxDescription),
		Color:       msg.Color,
	}
	if msg.AuthorName != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    msg.AuthorName,
			URL:     msg.AuthorURL,
			IconURL: msg.AuthorIcon,
		}
	}
	if msg.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}
	for i, f := range msg.Fields {
		if i == maxFields {
			break
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  clip(f.Value, maxFieldValue),
			Inline: f.Inline,
		})
	}
	send.Embeds = []*discordgo.MessageEmbed{embed}
	return send
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
