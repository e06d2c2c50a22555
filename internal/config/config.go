// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Chat providers.
const (
	ProviderDiscord  = "discord"
	ProviderTelegram = "telegram"
)

// Unlimited disables a numeric limit.
const Unlimited = -1

// Config represents the application configuration.
type Config struct {
	Chat     ChatConfig     `mapstructure:"chat"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Log      LogConfig      `mapstructure:"log"`
}

// ChatConfig selects the chat platform notifications are delivered to.
type ChatConfig struct {
	Provider string `mapstructure:"provider"` // discord or telegram
}

// DiscordConfig holds Discord bot configuration.
type DiscordConfig struct {
	Token string `mapstructure:"token"`
}

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
	Debug bool   `mapstructure:"debug"`
}

// GitHubConfig holds GitHub API and webhook configuration.
type GitHubConfig struct {
	Token         string `mapstructure:"token"`
	WebhookSecret string `mapstructure:"webhook_secret"` // fallback for repositories without their own secret
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// LimitsConfig holds per-server resource limits. A negative value means unlimited.
type LimitsConfig struct {
	MaxRepositories int `mapstructure:"max_repositories"`
	MaxChannels     int `mapstructure:"max_channels"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("chat.provider", ProviderDiscord)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("database.path", "./data/bot.db")
	v.SetDefault("limits.max_repositories", 10)
	v.SetDefault("limits.max_channels", Unlimited)
	v.SetDefault("log.level", "info")
	v.SetDefault("telegram.debug", false)
	// Registered so AutomaticEnv can see keys that have no default.
	v.SetDefault("discord.token", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("github.token", "")
	v.SetDefault("github.webhook_secret", "")
	v.SetDefault("log.file", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("GHBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Chat.Provider = strings.ToLower(strings.TrimSpace(cfg.Chat.Provider))
	if cfg.Chat.Provider != ProviderDiscord && cfg.Chat.Provider != ProviderTelegram {
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Chat.Provider)
	}

	return &cfg, nil
}

// Validate checks that everything needed to run the bot is set.
func (c *Config) Validate() error {
	switch c.Chat.Provider {
	case ProviderDiscord:
		if c.Discord.Token == "" {
			return fmt.Errorf("discord token is required")
		}
	case ProviderTelegram:
		if c.Telegram.Token == "" {
			return fmt.Errorf("telegram token is required")
		}
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	return nil
}

// ServerAddress returns the full server address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
