package cmd

import (
	"context"
	"fmt"
	"time"

	"shopify-session-storage/internal/application"
	"shopify-session-storage/internal/domain"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var getOffline bool

var getCmd = &cobra.Command{
	Use:   "get <session-id | shop>",
	Short: "Print a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, sessions *application.SessionService, _ zerolog.Logger) error {
			var (
				session *domain.Session
				err     error
			)
			if getOffline {
				session, err = sessions.LoadOffline(ctx, args[0])
			} else {
				session, err = sessions.Load(ctx, args[0])
			}
			if err != nil {
				return err
			}
			if session == nil {
				return fmt.Errorf("session %s not found", args[0])
			}
			return printJSON(cmd.OutOrStdout(), session)
		})
	},
}

var findCmd = &cobra.Command{
	Use:   "find <shop>",
	Short: "List the sessions of a shop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, sessions *application.SessionService, _ zerolog.Logger) error {
			found, err := sessions.FindByShop(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), found)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>...",
	Short: "Delete sessions by ID",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, sessions *application.SessionService, logger zerolog.Logger) error {
			for _, id := range args {
				if err := sessions.Delete(ctx, id); err != nil {
					return err
				}
				logger.Info().Str("sessionId", id).Msg("Deleted session")
			}
			return nil
		})
	},
}

var purgeExpired bool

var purgeCmd = &cobra.Command{
	Use:   "purge <shop>",
	Short: "Delete every session of a shop",
	Long: `Deletes every session stored for the shop. With --expired only sessions
whose expiry has passed are deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessions(cmd, func(ctx context.Context, sessions *application.SessionService, _ zerolog.Logger) error {
			var (
				count int
				err   error
			)
			if purgeExpired {
				count, err = sessions.DeleteExpired(ctx, args[0], time.Now())
			} else {
				count, err = sessions.PurgeShop(ctx, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d session(s)\n", count)
			return nil
		})
	},
}

func init() {
	getCmd.Flags().BoolVar(&getOffline, "offline", false, "treat the argument as a shop and load its offline session")
	purgeCmd.Flags().BoolVar(&purgeExpired, "expired", false, "only delete expired sessions")
}
