// Package cmd contains all CLI commands for sessionctl
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"marketplace-client/config"
	"marketplace-client/driver"
	"marketplace-client/event"
	"marketplace-client/repository"
	"marketplace-client/service"
	"marketplace-client/transport"
)

var (
	verbose bool
	version = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sessionctl",
	Short: "Marketplace session smoke-test CLI",
	Long: `sessionctl exercises the marketplace session lifecycle against a
running backend: log in, inspect the stored session, refresh it, and log out.

The session is persisted the same way the client library persists it (OS
keyring with a file fallback), so a session created here is visible to any
program using the library with the same storage configuration.

Example usage:
  sessionctl login -u seller@example.com   # Exchange credentials for a session
  sessionctl status                        # Show the stored session
  sessionctl refresh                       # Force a token refresh
  sessionctl logout                        # Invalidate and clear the session`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// app bundles the wired session stack the subcommands operate on.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	bus       *event.Bus
	sessions  *service.SessionService
	refresher *service.RefreshCoordinator
	auth      *service.AuthService
	client    *transport.Client
}

// buildApp wires the full client stack from configuration: keyring-backed
// token storage with a file fallback, the session service, the refresh
// coordinator, the auth facade, and an authenticated HTTP client.
func buildApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelWarn
	if verbose || cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	tokens := repository.NewSecureTokenRepository(
		repository.SystemKeyring{},
		repository.NewFileTokenRepository(cfg.Storage.TokenFallback, logger),
		cfg.Storage.KeyringService,
		cfg.Storage.KeyringAccount,
		logger,
	)
	data := repository.NewFileSessionDataRepository(cfg.Storage.SessionDataFile, logger)

	bus := event.NewBus(logger)
	sessions := service.NewSessionService(tokens, data, bus, cfg.Tokens.ExpirySkew, logger)
	authClient := driver.NewAuthClient(cfg.API.BaseURL, cfg.API.Timeout, logger)
	refresher := service.NewRefreshCoordinator(sessions, authClient, cfg.Tokens.ExpirySkew, cfg.Tokens.ProactiveWindow, logger)

	authTransport := transport.NewAuthTransport(nil, sessions, refresher, cfg.Tokens.ExpirySkew, cfg.Tokens.ProactiveWindow, logger)
	client := transport.NewClient(cfg.API.BaseURL, cfg.API.Timeout, authTransport, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		bus:       bus,
		sessions:  sessions,
		refresher: refresher,
		auth:      service.NewAuthService(sessions, authClient, logger),
		client:    client,
	}, nil
}
