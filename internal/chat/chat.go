// Package chat defines the chat-platform client the notifier delivers through.
package chat

import (
	"context"
	"errors"
)

// ErrChannelNotFound is returned by FetchChannel when the channel does not
// exist or the bot cannot see it.
var ErrChannelNotFound = errors.New("channel not found")

// Client looks up channels on the chat platform.
type Client interface {
	FetchChannel(ctx context.Context, channelID string) (Channel, error)
}

// Channel is a destination messages can be sent to.
type Channel interface {
	ID() string
	IsTextBased() bool
	Send(ctx context.Context, msg Message) (MessageHandle, error)
}

// MessageHandle identifies a sent message.
type MessageHandle struct {
	ID        string
	ChannelID string
}

// Message is a platform-neutral rich message. Platforms render what they support.
type Message struct {
	Content     string
	Title       string
	URL         string
	Description string
	Color       int
	AuthorName  string
	AuthorIcon  string
	AuthorURL   string
	Fields      []Field
	Footer      string
}

// Field is a labelled value shown in a message.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Colors used across notifications.
const (
	ColorGreen  = 0x2ECC71
	ColorRed    = 0xE74C3C
	ColorPurple = 0x6F42C1
	ColorBlue   = 0x3498DB
	ColorOrange = 0xE67E22
	ColorGray   = 0x95A5A6
	ColorYellow = 0xF1C40F
)
