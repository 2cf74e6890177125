package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"marketplace-client/service"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a token refresh",
	Long: `Refresh the session immediately instead of waiting for the request
pipeline to do it. Useful for verifying backend refresh behavior.`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	ctx := context.Background()
	session := app.sessions.LoadSession(ctx)
	if session == nil {
		return fmt.Errorf("no session to refresh, run `sessionctl login` first")
	}

	refreshed, err := app.refresher.Refresh(ctx, session)
	if err != nil {
		if errors.Is(err, service.ErrRefreshTokenExpired) {
			return fmt.Errorf("refresh token has expired, session cleared")
		}
		return err
	}

	fmt.Printf("Session refreshed, access token %s\n", describeExpiry(refreshed.AccessExpiresAt))
	return nil
}
