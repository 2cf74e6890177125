package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"marketplace-client/models"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	Long: `Register a new marketplace account. Registration does not log in;
run 'sessionctl login' afterwards.`,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("email", "", "account email")
	registerCmd.Flags().String("first-name", "", "first name")
	registerCmd.Flags().String("last-name", "", "last name")
	registerCmd.Flags().String("mobile", "", "mobile number")
	registerCmd.Flags().String("address", "", "address")
	registerCmd.Flags().String("role", "BUYER", "account role (BUYER or SELLER)")
	_ = registerCmd.MarkFlagRequired("email")
}

func runRegister(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")

	password, err := promptPassword()
	if err != nil {
		return err
	}

	app, err := buildApp()
	if err != nil {
		return err
	}

	req := &models.RegisterRequest{
		Email:    email,
		Password: password,
	}
	req.FirstName, _ = cmd.Flags().GetString("first-name")
	req.LastName, _ = cmd.Flags().GetString("last-name")
	req.MobileNumber, _ = cmd.Flags().GetString("mobile")
	req.Address, _ = cmd.Flags().GetString("address")
	req.Role, _ = cmd.Flags().GetString("role")

	if err := app.auth.Register(context.Background(), req); err != nil {
		var apiErr *models.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("%s", apiErr.FriendlyMessage(""))
		}
		return err
	}

	fmt.Printf("Account %s registered. Run `sessionctl login` to sign in.\n", email)
	return nil
}
