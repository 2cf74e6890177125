package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate and clear the session",
	Long: `Log out of the marketplace backend.

The server-side invalidation is best-effort: the local session is cleared
even when the backend is unreachable.`,
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if app.sessions.LoadSession(ctx) == nil {
		fmt.Println("No session to clear.")
		return nil
	}

	app.auth.SignOut(ctx)
	fmt.Println("Logged out.")
	return nil
}
