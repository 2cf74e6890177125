package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"marketplace-client/driver"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange credentials for a session",
	Long: `Log in to the marketplace backend and persist the resulting session.

The password is read from the terminal when not supplied via --password.

Examples:
  sessionctl login -u seller@example.com
  sessionctl login -u seller@example.com -p hunter2   # scripting only`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringP("username", "u", "", "account email")
	loginCmd.Flags().StringP("password", "p", "", "account password (prompted when omitted)")
	_ = loginCmd.MarkFlagRequired("username")
}

func runLogin(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	if password == "" {
		var err error
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	app, err := buildApp()
	if err != nil {
		return err
	}

	session, err := app.auth.SignIn(context.Background(), username, password)
	if err != nil {
		if errors.Is(err, driver.ErrInvalidCredentials) {
			return fmt.Errorf("invalid username or password")
		}
		return err
	}

	fmt.Printf("Logged in as user %d", session.UserID)
	if session.SellerID != nil {
		fmt.Printf(" (seller %d)", *session.SellerID)
	}
	fmt.Println()
	if session.AccessExpiresAt != nil {
		fmt.Printf("Access token valid until %s\n", session.AccessExpiresAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
