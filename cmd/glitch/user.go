package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage operator accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an operator account",
	Long: `Create an operator account that can log in to the dashboard.

The email is stored lowercased and must be unique. Passwords are stored as
bcrypt hashes.`,
	Args: cobra.NoArgs,
	RunE: runUserAdd,
}

var (
	userName     string
	userEmail    string
	userPassword string
)

func init() {
	userAddCmd.Flags().StringVarP(&userName, "name", "n", "", "Display name")
	userAddCmd.Flags().StringVarP(&userEmail, "email", "e", "", "Login email")
	userAddCmd.Flags().StringVarP(&userPassword, "password", "p", "", "Password (prompted when omitted)")
	_ = userAddCmd.MarkFlagRequired("name")
	_ = userAddCmd.MarkFlagRequired("email")

	userCmd.AddCommand(userAddCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	password := userPassword
	if password == "" {
		if password, err = prompt(cmd, "Password: ", true); err != nil {
			return err
		}
	}
	cmd.SilenceUsage = true

	service, closeAuth, err := env.openAuth(cmd.Context())
	if err != nil {
		return err
	}
	defer closeAuth()

	user, err := service.Register(cmd.Context(), userName, userEmail, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s <%s>\n", user.Name, user.Email)
	return nil
}
