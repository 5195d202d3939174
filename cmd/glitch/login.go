package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check operator credentials",
	Long: `Check an email and password against the operator accounts.

The password is prompted for without echo when it is not given with
--password and the terminal is interactive.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var (
	loginEmail    string
	loginPassword string
)

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Operator email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Operator password (prompted when omitted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	email, password := loginEmail, loginPassword
	if email == "" {
		if email, err = prompt(cmd, "Email: ", false); err != nil {
			return err
		}
	}
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

	ok, err := service.CheckCredentials(cmd.Context(), email, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccessDenied
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Access granted: %s\n", strings.ToLower(strings.TrimSpace(email)))
	return nil
}

// prompt reads one line from the command input. Secret input is read without
// echo when stdin is a terminal.
func prompt(cmd *cobra.Command, label string, secret bool) (string, error) {
	in := cmd.InOrStdin()
	f, isFile := in.(*os.File)
	interactive := isFile && term.IsTerminal(int(f.Fd()))

	if interactive {
		fmt.Fprint(cmd.ErrOrStderr(), label)
	}
	if secret && interactive {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(strings.TrimSuffix(label, ": ")), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
