package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"marketplace-client/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	Long: `Display the persisted session: identity, roles, and token expiries.

Examples:
  sessionctl status            # Human-readable summary
  sessionctl status --json     # Output as JSON`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Bool("json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	app, err := buildApp()
	if err != nil {
		return err
	}

	session := app.sessions.LoadSession(context.Background())
	if session == nil {
		fmt.Println("No session. Run `sessionctl login` first.")
		return nil
	}

	if jsonOutput {
		return outputSessionJSON(session)
	}
	outputSessionSummary(session, app.cfg.Tokens.ExpirySkew, app.cfg.Tokens.ProactiveWindow)
	return nil
}

func outputSessionJSON(session *models.Session) error {
	view := struct {
		UserID           int64      `json:"userId"`
		SellerID         *int64     `json:"sellerId"`
		Roles            []string   `json:"roles"`
		Fingerprint      string     `json:"fingerprint,omitempty"`
		AccessExpiresAt  *time.Time `json:"accessExpiresAt"`
		RefreshExpiresAt *time.Time `json:"refreshExpiresAt"`
	}{
		UserID:           session.UserID,
		SellerID:         session.SellerID,
		Roles:            session.Roles,
		Fingerprint:      session.Fingerprint,
		AccessExpiresAt:  session.AccessExpiresAt,
		RefreshExpiresAt: session.RefreshExpiresAt,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func outputSessionSummary(session *models.Session, skew, window time.Duration) {
	fmt.Printf("User:        %d\n", session.UserID)
	if session.SellerID != nil {
		fmt.Printf("Seller:      %d\n", *session.SellerID)
	}
	fmt.Printf("Roles:       %v\n", session.Roles)
	if session.Fingerprint != "" {
		fmt.Printf("Fingerprint: %s\n", session.Fingerprint)
	}

	fmt.Printf("Access:      %s\n", describeExpiry(session.AccessExpiresAt))
	fmt.Printf("Refresh:     %s\n", describeExpiry(session.RefreshExpiresAt))

	switch {
	case session.IsRefreshTokenExpired(skew):
		fmt.Println("State:       expired (next request clears the session)")
	case session.IsAccessTokenExpired(skew):
		fmt.Println("State:       stale (next request refreshes before sending)")
	case session.ShouldProactivelyRefresh(window):
		fmt.Println("State:       refreshing soon (next request refreshes in the background)")
	default:
		fmt.Println("State:       valid")
	}
}

func describeExpiry(expiresAt *time.Time) string {
	if expiresAt == nil {
		return "never expires"
	}
	remaining := time.Until(*expiresAt).Round(time.Second)
	if remaining < 0 {
		return fmt.Sprintf("expired %s ago (%s)", -remaining, expiresAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("valid for %s (%s)", remaining, expiresAt.Format(time.RFC3339))
}
