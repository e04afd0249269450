package main

import (
	"fmt"

	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/service"
	"github.com/spf13/cobra"
)

var adminEmail string

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create an administrator account",
	Long: `Create an administrator. The password is prompted for on a terminal and
read from stdin otherwise.

Examples:
  scheduler admin create alice --email alice@example.com
  echo "$PASSWORD" | scheduler admin create alice`,
	Args: cobra.ExactArgs(1),
	RunE: runAdminCreate,
}

var adminPromoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Grant the ADMIN role to an existing user",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminPromote,
}

func init() {
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "Email address (default: <username>@localhost)")

	adminCmd.AddCommand(adminCreateCmd)
	adminCmd.AddCommand(adminPromoteCmd)
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	username := args[0]

	database, err := openDatabase()
	if err != nil {
		return err
	}

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	created, err := service.NewUserService(database).EnsureAdmin(cmd.Context(), username, adminEmail, password)
	if err != nil {
		return describeError(err)
	}
	if !created {
		return fmt.Errorf("user %q already exists; use 'scheduler admin promote %s'", username, username)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created administrator %s\n", username)
	return nil
}

func runAdminPromote(cmd *cobra.Command, args []string) error {
	database, err := openDatabase()
	if err != nil {
		return err
	}

	user, err := findUser(cmd.Context(), database, args[0])
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already an administrator\n", user.Username)
		return nil
	}

	if _, err := service.NewUserService(database).SetRole(cmd.Context(), operator, user.ID, models.RoleAdmin); err != nil {
		return describeError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Promoted %s to administrator\n", user.Username)
	return nil
}
