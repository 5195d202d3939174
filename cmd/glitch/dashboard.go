package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/srg/glitch/internal/device"
	"github.com/srg/glitch/internal/groutine"
	"github.com/srg/glitch/internal/ringchan"
	"github.com/srg/glitch/internal/tui"
	"github.com/srg/glitch/scanner"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"ui"},
	Short:   "Open the interactive scanner dashboard",
	Long: `Open the full-screen scanner dashboard.

Operators log in with the email and password of an account created with
'glitch user add'. After login the dashboard scans for nearby devices and
shows them as cards in the order they were discovered.

Keys: s starts or stops the scan, up/down or j/k scroll, q or esc quits.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

var dashboardSkipLogin bool

const dashboardFeedSize = 256

func init() {
	dashboardCmd.Flags().BoolVar(&dashboardSkipLogin, "skip-login", false, "Open the dashboard without the login screen")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if !isTerminal(cmd.OutOrStdout()) {
		return ErrNotInteractive
	}

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}
	defer env.close()
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := tui.Options{
		GlitchTarget:   env.cfg.Glitch.Target,
		GlitchInterval: env.cfg.Glitch.Interval,
		Logger:         env.logger,
	}
	if !dashboardSkipLogin {
		service, closeAuth, err := env.openAuth(ctx)
		if err != nil {
			return err
		}
		defer closeAuth()
		opts.Auth = service
	}

	session, monitor, err := env.newSession(env.cfg.Scan.AllowDuplicates)
	if err != nil {
		return err
	}
	defer session.Close()

	// From here on the terminal belongs to the UI
	env.quiet()

	feed := ringchan.New[scanner.Event](dashboardFeedSize)
	sub := session.Subscribe(func(ev scanner.Event) { feed.ForceSend(ev) })
	defer sub.Remove()

	done := make(chan struct{})
	watchCtx, cancelWatch := context.WithCancel(ctx)

	// watchDone is set once the scan goroutine runs; closed stops late starts
	var (
		mu        sync.Mutex
		closed    bool
		watchDone chan struct{}
	)

	var pm device.PowerMonitor
	if monitor != nil {
		pm = monitor
	}

	opts.Session = session
	opts.Feed = feed.C()
	opts.Done = done
	opts.OnDashboard = func() {
		mu.Lock()
		defer mu.Unlock()
		if closed || watchDone != nil {
			return
		}
		finished := make(chan struct{})
		watchDone = finished
		groutine.Go(watchCtx, "dashboard-watch", func(ctx context.Context) {
			defer close(finished)
			if err := scanner.Watch(ctx, session, pm); err != nil && !errors.Is(err, context.Canceled) {
				env.logger.WithError(err).Error("Dashboard scan stopped")
				feed.ForceSend(scanner.Event{Type: scanner.EventScanError, Err: err, Terminal: true})
			}
		})
	}

	runErr := tui.Run(ctx, opts)

	cancelWatch()
	close(done)
	mu.Lock()
	closed = true
	finished := watchDone
	mu.Unlock()
	if finished != nil {
		<-finished
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return runErr
}
