package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/gitcord/internal/chat"
	"github.com/user/gitcord/internal/config"
	"github.com/user/gitcord/internal/discord"
	"github.com/user/gitcord/internal/events"
	"github.com/user/gitcord/internal/limits"
	"github.com/user/gitcord/internal/notifier"
	"github.com/user/gitcord/internal/routing"
	"github.com/user/gitcord/internal/storage"
	"github.com/user/gitcord/internal/telegram"
	"github.com/user/gitcord/internal/webhook"
	"github.com/user/gitcord/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server and chat bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// platform is a running chat bot.
type platform struct {
	client chat.Client
	stop   func()
}

func startPlatform(cfg *config.Config, store *storage.Store) (*platform, error) {
	switch cfg.Chat.Provider {
	case config.ProviderTelegram:
		bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.Debug, store)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
		}
		bot.Start()
		return &platform{client: bot.Client(), stop: bot.Stop}, nil
	default:
		client, err := discord.NewClient(cfg.Discord.Token)
		if err != nil {
			return nil, err
		}
		bot := discord.NewBot(client, store)
		if err := bot.Start(); err != nil {
			return nil, err
		}
		return &platform{client: client, stop: bot.Stop}, nil
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger.Info().Str("provider", cfg.Chat.Provider).Msg("Starting gitcord")

	db, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	bot, err := startPlatform(cfg, store)
	if err != nil {
		return err
	}

	guard := limits.NewGuard(store, cfg.Limits.MaxRepositories, cfg.Limits.MaxChannels)
	notify := notifier.NewNotifier(bot.client, store, guard)
	handlers := events.NewHandlers(store, routing.NewResolver(store), notify)
	wh := webhook.NewHandler(store, handlers, notify, webhook.Options{
		GlobalSecret: cfg.GitHub.WebhookSecret,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	server := &http.Server{
		Addr:    cfg.ServerAddress(),
		Handler: webhook.NewRouter(wh, store, time.Now()),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.ServerAddress()).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		logger.Error().Err(runErr).Msg("HTTP server error")
	}

	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	bot.stop()

	logger.Info().Msg("Shutdown complete")
	return runErr
}
