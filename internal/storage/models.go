// Package storage provides database operations and data models.
package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Channel sentinels stored in or returned for event routing.
const (
	// ChannelDefault marks an event mapping that follows the repository default channel.
	ChannelDefault = "default"
	// ChannelPending means no channel is configured yet; delivery is skipped.
	ChannelPending = "pending"
)

// ServerStatus is the activity status of a chat server.
type ServerStatus string

const (
	StatusActive   ServerStatus = "ACTIVE"
	StatusInactive ServerStatus = "INACTIVE"
)

// Server represents one chat-platform guild.
type Server struct {
	ID           int64        `db:"id"`
	GuildID      string       `db:"guild_id"`
	Name         string       `db:"name"`
	Status       ServerStatus `db:"status"`
	MessagesSent int64        `db:"messages_sent"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// Repository is a source-control URL linked to a server.
type Repository struct {
	ID            int64     `db:"id"`
	ServerID      int64     `db:"server_id"`
	URL           string    `db:"url"`
	ChannelID     string    `db:"channel_id"`     // empty when no default channel is set
	WebhookSecret string    `db:"webhook_secret"` // empty falls back to the global secret
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// RepositoryWithServer is a repository joined with its parent server.
type RepositoryWithServer struct {
	Repository
	Server Server `db:"server"`
}

// TrackedBranch routes pushes on branches matching Pattern to a channel.
type TrackedBranch struct {
	ID           int64     `db:"id"`
	RepositoryID int64     `db:"repository_id"`
	Pattern      string    `db:"branch_name"`
	ChannelID    string    `db:"channel_id"` // empty uses the repository default
	CreatedAt    time.Time `db:"created_at"`
}

// RepositoryEventChannel routes a non-branch event type for a repository.
type RepositoryEventChannel struct {
	ID           int64       `db:"id"`
	RepositoryID int64       `db:"repository_id"`
	EventType    string      `db:"event_type"`
	ChannelID    string      `db:"channel_id"`
	Config       EventConfig `db:"config"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

// EventConfig is the JSON configuration blob of an event mapping.
type EventConfig struct {
	ActionsEnabled  map[string]bool `json:"actionsEnabled"`
	ExplicitChannel bool            `json:"explicitChannel"`
}

// Value implements driver.Valuer.
func (c EventConfig) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. Unknown keys in the blob are ignored.
func (c *EventConfig) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = EventConfig{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported config type %T", src)
	}
	var cfg EventConfig
	if len(data) > 0 {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to unmarshal event config: %w", err)
		}
	}
	*c = cfg
	return nil
}

// ErrorLog records a failure while processing a webhook.
type ErrorLog struct {
	ID           int64     `db:"id"`
	ServerID     int64     `db:"server_id"`
	RepositoryID int64     `db:"repository_id"`
	EventType    string    `db:"event_type"`
	Action       string    `db:"action"`
	Message      string    `db:"message"`
	ProcessingMs int64     `db:"processing_ms"`
	UserAgent    string    `db:"user_agent"`
	SourceIP     string    `db:"source_ip"`
	DeliveryID   string    `db:"delivery_id"`
	CreatedAt    time.Time `db:"created_at"`
}

// SystemLog is an informational operational record.
type SystemLog struct {
	ID           int64     `db:"id"`
	Level        string    `db:"level"`
	Message      string    `db:"message"`
	ServerID     int64     `db:"server_id"`
	RepositoryID int64     `db:"repository_id"`
	Details      string    `db:"details"`
	CreatedAt    time.Time `db:"created_at"`
}

// Performance records how long one operation took.
type Performance struct {
	ID           int64     `db:"id"`
	Operation    string    `db:"operation"`
	DurationMs   int64     `db:"duration_ms"`
	ServerID     int64     `db:"server_id"`
	RepositoryID int64     `db:"repository_id"`
	CreatedAt    time.Time `db:"created_at"`
}

// MessageCount is the per-server message counter exposed over HTTP.
type MessageCount struct {
	GuildID      string `db:"guild_id" json:"guildId"`
	MessagesSent int64  `db:"messages_sent" json:"messagesSent"`
}
