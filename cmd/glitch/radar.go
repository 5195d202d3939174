package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/glitch/internal/auth"
	"github.com/srg/glitch/internal/radar"
)

var radarCmd = &cobra.Command{
	Use:   "radar",
	Short: "Report your position and list operators nearby",
	Long: `Record the given position for your account and list the other operators
whose last reported position is within the search radius, closest first.

Operators that reported within the last 15 minutes are shown as online.`,
	Example: `  glitch radar --email ops@example.com --lat 52.5200 --lon 13.4050
  glitch radar -e ops@example.com --lat 52.52 --lon 13.405 --radius 1000 --format json`,
	Args: cobra.NoArgs,
	RunE: runRadar,
}

var (
	radarEmail    string
	radarPassword string
	radarLat      float64
	radarLon      float64
	radarRadius   float64
	radarFormat   string
)

func init() {
	addRadarFlags()
}

func addRadarFlags() {
	radarCmd.Flags().StringVarP(&radarEmail, "email", "e", "", "Operator email")
	radarCmd.Flags().StringVarP(&radarPassword, "password", "p", "", "Operator password (prompted when omitted)")
	radarCmd.Flags().Float64Var(&radarLat, "lat", 0, "Latitude in degrees")
	radarCmd.Flags().Float64Var(&radarLon, "lon", 0, "Longitude in degrees")
	radarCmd.Flags().Float64Var(&radarRadius, "radius", radar.DefaultRadius, "Search radius in meters")
	radarCmd.Flags().StringVarP(&radarFormat, "format", "f", "table", "Output format (table, json)")
	_ = radarCmd.MarkFlagRequired("email")
	_ = radarCmd.MarkFlagRequired("lat")
	_ = radarCmd.MarkFlagRequired("lon")
}

func runRadar(cmd *cobra.Command, args []string) error {
	if radarFormat != "table" && radarFormat != "json" {
		return fmt.Errorf("invalid format %q (use table or json)", radarFormat)
	}
	loc := radar.Location{Latitude: radarLat, Longitude: radarLon}
	if err := loc.Validate(); err != nil {
		return err
	}
	if radarRadius <= 0 {
		return radar.ErrInvalidRadius
	}

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	password := radarPassword
	if password == "" {
		if password, err = prompt(cmd, "Password: ", true); err != nil {
			return err
		}
	}
	cmd.SilenceUsage = true

	ctx := cmd.Context()
	users, err := env.openStore(ctx)
	if err != nil {
		return err
	}
	defer users.Close()

	ok, err := auth.NewService(users, auth.WithLogger(env.logger)).CheckCredentials(ctx, radarEmail, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccessDenied
	}

	positions := radar.NewPGStore(users.Pool())
	if err := positions.EnsureSchema(ctx); err != nil {
		return err
	}

	contacts, err := radar.NewService(users, positions, radar.WithLogger(env.logger)).
		Scan(ctx, radarEmail, loc, radarRadius)
	if err != nil {
		return err
	}

	if radarFormat == "json" {
		return displayContactsJSON(cmd.OutOrStdout(), contacts)
	}
	return displayContacts(cmd.OutOrStdout(), contacts, time.Now())
}

func displayContacts(out io.Writer, contacts []radar.Contact, now time.Time) error {
	if len(contacts) == 0 {
		fmt.Fprintln(out, "No operators nearby")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEMAIL\tDISTANCE\tSTATUS\tLAST SEEN")
	fmt.Fprintln(w, "----\t-----\t--------\t------\t---------")

	for _, c := range contacts {
		status := color.New(color.FgRed).Sprint("offline")
		if c.Online {
			status = color.New(color.FgGreen).Sprint("online ")
		}

		lastSeen := now.Sub(c.LastSeen).Truncate(time.Second)
		if lastSeen < 0 {
			lastSeen = 0
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s ago\n", c.Name, c.Email, formatDistance(c.Distance), status, lastSeen)
	}

	return w.Flush()
}

func formatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

func displayContactsJSON(out io.Writer, contacts []radar.Contact) error {
	if contacts == nil {
		contacts = []radar.Contact{}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(contacts)
}
