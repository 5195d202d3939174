package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

var rootCmd = &cobra.Command{
	Use:   "glitch",
	Short: "BLE peripheral scanner with a terminal dashboard",
	Long: `glitch discovers nearby Bluetooth Low Energy peripherals and keeps a
live, deduplicated list of them:

- Scan once and print a table or JSON
- Watch the list update as signal strength changes
- Open the interactive dashboard behind an operator login
- Manage operator accounts stored in PostgreSQL`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// main() prints errors itself
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("glitch %s (commit %s, built %s)\n", formatVersion(version), commit, date))

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(radarCmd)

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: user config dir/glitch/config.yaml)")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL URL for operator accounts (env GLITCH_DATABASE_URL)")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
