// Package cmd provides the sessionctl commands for inspecting and maintaining
// stored Shopify sessions.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"shopify-session-storage/internal/application"
	"shopify-session-storage/internal/config"
	"shopify-session-storage/internal/infrastructure/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	backend  string
	timeout  time.Duration
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "sessionctl",
	Short: "Inspect and maintain stored Shopify sessions",
	Long: `sessionctl connects to the configured session storage backend,
applies pending schema migrations and runs maintenance commands.

Configuration is read from session-storage.yaml in the current directory,
a .env file and SESSION_STORAGE_* environment variables.
Example: SESSION_STORAGE_BACKEND=redis SESSION_STORAGE_REDIS_URL=redis://localhost:6379/0`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./session-storage.yaml)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "storage backend, overrides the configuration")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "time allowed for connecting and migrating")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the configuration")

	rootCmd.AddCommand(migrateCmd, getCmd, findCmd, deleteCmd, purgeCmd)
}

// openSessions loads the configuration, builds the storage and waits until it is ready
func openSessions(ctx context.Context) (*application.SessionService, zerolog.Logger, error) {
	v := config.NewViper(cfgFile)
	if backend != "" {
		v.Set("backend", backend)
	}
	if logLevel != "" {
		v.Set("server.log_level", logLevel)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()

	cfg, err := config.LoadFrom(v)
	if err != nil {
		return nil, logger, err
	}
	if level, err := zerolog.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	storage, err := repository.New(ctx, cfg, logger)
	if err != nil {
		return nil, logger, err
	}
	sessions := application.NewSessionService(storage, logger)

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sessions.Ready(readyCtx); err != nil {
		_ = sessions.Close(context.Background())
		return nil, logger, fmt.Errorf("failed to initialize %s storage: %w", cfg.Backend, err)
	}
	return sessions, logger, nil
}

// withSessions runs fn against a ready session service and disconnects afterwards
func withSessions(cmd *cobra.Command, fn func(ctx context.Context, sessions *application.SessionService, logger zerolog.Logger) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sessions, logger, err := openSessions(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := sessions.Close(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Failed to disconnect session storage")
		}
	}()

	return fn(ctx, sessions, logger)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
