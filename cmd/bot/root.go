package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/gitcord/internal/config"
	"github.com/user/gitcord/internal/github"
	"github.com/user/gitcord/internal/limits"
	"github.com/user/gitcord/internal/manage"
	"github.com/user/gitcord/internal/storage"
	"github.com/user/gitcord/pkg/logger"
)

var (
	// Global flags
	flagConfig string
	flagServer string
)

var rootCmd = &cobra.Command{
	Use:           "gitcord",
	Short:         "Relay GitHub webhooks to chat channels",
	Long:          "gitcord receives GitHub webhook deliveries, routes them per repository, branch and event type, and posts formatted notifications to Discord or Telegram.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to configuration file")
}

// addServerFlag registers the --server flag shared by the admin commands.
func addServerFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&flagServer, "server", "", "guild id (Discord) or chat id (Telegram) to configure")
	_ = cmd.MarkPersistentFlagRequired("server")
}

func execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// loadConfig reads the configuration and initializes the logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level == "debug", cfg.Log.File); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured database.
func openStore(cfg *config.Config) (*storage.Database, *storage.Store, error) {
	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, storage.NewStore(db), nil
}

// withService runs fn against a management service backed by the configured store.
func withService(fn func(svc *manage.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	guard := limits.NewGuard(store, cfg.Limits.MaxRepositories, cfg.Limits.MaxChannels)
	return fn(manage.NewService(store, guard, github.NewClient(cfg.GitHub.Token)))
}
