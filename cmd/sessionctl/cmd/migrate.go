package cmd

import (
	"context"
	"fmt"

	"shopify-session-storage/internal/application"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the session table and apply pending migrations",
	Long: `Connects to the configured backend, creates the session table when it is
missing and applies every pending migration in order. Migrations that were
already applied are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, _ *application.SessionService, logger zerolog.Logger) error {
			logger.Info().Msg("Session storage is up to date")
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		})
	},
}
