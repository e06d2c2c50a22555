// Package chattest provides an in-memory chat.Client for tests.
package chattest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/user/gitcord/internal/chat"
)

// Sent is one message recorded by the fake client.
type Sent struct {
	ChannelID string
	Message   chat.Message
}

// Client is a recording chat.Client. Channels must be added before use;
// unknown ids answer chat.ErrChannelNotFound.
type Client struct {
	mu       sync.Mutex
	channels map[string]*channel
	sent     []Sent
	nextID   int
}

// NewClient creates a client knowing the given text channels.
func NewClient(channelIDs ...string) *Client {
	c := &Client{channels: make(map[string]*channel)}
	for _, id := range channelIDs {
		c.AddChannel(id, true)
	}
	return c
}

// AddChannel registers a channel.
func (c *Client) AddChannel(id string, textBased bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[id] = &channel{client: c, id: id, text: textBased}
}

// FailSends makes every send to channel id fail.
func (c *Client) FailSends(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.channels[id]; ok {
		ch.fail = true
	}
}

// FetchChannel implements chat.Client.
func (c *Client) FetchChannel(_ context.Context, channelID string) (chat.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[channelID]
	if !ok {
		return nil, chat.ErrChannelNotFound
	}
	return ch, nil
}

// Sent returns a copy of every message sent so far.
func (c *Client) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentTo returns the messages sent to one channel.
func (c *Client) SentTo(channelID string) []chat.Message {
	var out []chat.Message
	for _, s := range c.Sent() {
		if s.ChannelID == channelID {
			out = append(out, s.Message)
		}
	}
	return out
}

type channel struct {
	client *Client
	id     string
	text   bool
	fail   bool
}

func (ch *channel) ID() string        { return ch.id }
func (ch *channel) IsTextBased() bool { return ch.text }

func (ch *channel) Send(_ context.Context, msg chat.Message) (chat.MessageHandle, error) {
	c := ch.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch.fail {
		return chat.MessageHandle{}, errors.New("missing permissions")
	}
	c.nextID++
	c.sent = append(c.sent, Sent{ChannelID: ch.id, Message: msg})
	return chat.MessageHandle{ID: fmt.Sprintf("m%d", c.nextID), ChannelID: ch.id}, nil
}
