package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/glitch/internal/device"
	"github.com/srg/glitch/internal/devicefactory"
	"github.com/srg/glitch/internal/groutine"
	"github.com/srg/glitch/internal/ringchan"
	"github.com/srg/glitch/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BLE devices",
	Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

Every device is listed once, in the order it was first discovered, with its
name, address, latest signal strength and advertised services. Devices that
are seen again update their entry instead of being listed twice.`,
	RunE: runScan,
}

var (
	scanDuration        time.Duration
	scanFormat          string
	scanAllowDuplicates bool
	scanWatch           bool
)

var validFormats = []string{"table", "json"}

const (
	watchRefreshInterval = time.Second
	watchFeedSize        = 256
)

func init() {
	addScanFlags()
}

func addScanFlags() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration (0 for indefinite, default from config)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().BoolVar(&scanAllowDuplicates, "allow-duplicates", true, "Report repeated advertisements so RSSI stays current (default from config)")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Continuously scan and update results")
}

func runScan(cmd *cobra.Command, args []string) error {
	if !slices.Contains(validFormats, scanFormat) {
		return fmt.Errorf("invalid format '%s': must be one of %v", scanFormat, validFormats)
	}
	if scanDuration < 0 {
		return fmt.Errorf("invalid duration %s: must not be negative", scanDuration)
	}

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	duration := env.cfg.Scan.Duration
	if cmd.Flags().Changed("duration") {
		duration = scanDuration
	}
	allowDup := env.cfg.Scan.AllowDuplicates
	if cmd.Flags().Changed("allow-duplicates") {
		allowDup = scanAllowDuplicates
	}

	session, monitor, err := env.newSession(allowDup)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if scanWatch {
		return runWatchMode(ctx, cmd.OutOrStdout(), session, monitor, duration, env.logger)
	}
	return runSingleScan(ctx, cmd.OutOrStdout(), session, duration, env.logger)
}

func runSingleScan(ctx context.Context, out io.Writer, session *scanner.Session, duration time.Duration, logger *logrus.Logger) error {
	var progress *ProgressPrinter
	if scanFormat == "table" && isTerminal(out) {
		if duration > 0 {
			progress = NewCountdownProgressPrinter(out, "Scanning for BLE devices", "Scanning", duration, "Processing results")
		} else {
			progress = NewProgressPrinter(out, "Scanning for BLE devices", "Scanning", "Processing results")
		}
		progress.Start()
		defer progress.Stop()
	}

	peripherals, err := scanner.Collect(ctx, session, scanner.CollectOptions{Duration: duration})
	if progress != nil {
		progress.Callback()("Processing results")
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(out, "\nScan cancelled, showing results so far...")
	case peripherals == nil:
		return err
	default:
		// Show what was found before the scan failed, then report the failure
		logger.WithError(err).Error("BLE scan failed")
		if displayErr := displayPeripherals(out, peripherals, time.Now()); displayErr != nil {
			return displayErr
		}
		return err
	}

	return displayPeripherals(out, peripherals, time.Now())
}

// runWatchMode keeps the scan running and redraws the table when the
// peripheral list changes, until ctx is done or the duration elapses.
func runWatchMode(ctx context.Context, out io.Writer, session *scanner.Session, monitor devicefactory.PowerMonitor, duration time.Duration, logger *logrus.Logger) error {
	if !session.Supported() {
		return device.ErrUnsupported
	}
	if !session.RequestScanPermission(ctx) {
		return scanner.ErrPermissionDenied
	}

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	changes := ringchan.New[scanner.Event](watchFeedSize)
	sub := session.Subscribe(func(ev scanner.Event) {
		changes.ForceSend(ev)
	})
	defer sub.Remove()

	var pm device.PowerMonitor
	if monitor != nil {
		pm = monitor
	}

	watchErr := make(chan error, 1)
	groutine.Go(ctx, "scan-watch", func(ctx context.Context) {
		watchErr <- scanner.Watch(ctx, session, pm)
	})

	redraw := func() error {
		clearScreen(out)
		return displayTable(out, session.Peripherals(), time.Now())
	}

	ticker := time.NewTicker(watchRefreshInterval)
	defer ticker.Stop()
	dirty := true

	for {
		select {
		case <-ctx.Done():
			<-watchErr
			return redraw()

		case err := <-watchErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return redraw()

		case ev := <-changes.C():
			if ev.Type != scanner.EventScanError || !ev.Terminal {
				dirty = true
				continue
			}
			if monitor != nil && errors.Is(ev.Err, device.ErrBluetoothOff) {
				// The power monitor restarts the scan once the adapter is back
				logger.Warn("Bluetooth turned off, waiting for it to come back")
				dirty = true
				continue
			}
			_ = redraw()
			return ev.Err

		case <-ticker.C:
			if dirty {
				if err := redraw(); err != nil {
					return err
				}
				dirty = false
			}
		}
	}
}

func displayPeripherals(out io.Writer, peripherals []scanner.Peripheral, now time.Time) error {
	switch scanFormat {
	case "json":
		return displayJSON(out, peripherals)
	default:
		return displayTable(out, peripherals, now)
	}
}

// displayTable prints peripherals in discovery order.
func displayTable(out io.Writer, peripherals []scanner.Peripheral, now time.Time) error {
	if len(peripherals) == 0 {
		fmt.Fprintln(out, "No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tSERVICES\tLAST SEEN")
	fmt.Fprintln(w, "----\t-------\t----\t--------\t---------")

	for _, p := range peripherals {
		name := p.DisplayName()
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		services := strings.Join(p.Services, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}

		lastSeen := now.Sub(p.LastSeen).Truncate(time.Second)
		if lastSeen < 0 {
			lastSeen = 0
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s ago\n",
			name, p.ID, rssiColor(p.RSSI).Sprintf("%d dBm", p.RSSI), services, lastSeen)
	}

	return w.Flush()
}

// rssiColor grades signal strength. All grades emit escape sequences of the
// same length so tabwriter alignment holds.
func rssiColor(rssi int) *color.Color {
	switch {
	case rssi >= -60:
		return color.New(color.FgGreen)
	case rssi >= -80:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func displayJSON(out io.Writer, peripherals []scanner.Peripheral) error {
	if peripherals == nil {
		peripherals = []scanner.Peripheral{}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(peripherals)
}

func clearScreen(out io.Writer) {
	fmt.Fprint(out, "\033[2J\033[H")
}
