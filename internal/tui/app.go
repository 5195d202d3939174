package tui

import (
	"context"
	"math/rand/v2"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/srg/glitch/scanner"
)

type screen int

const (
	screenLogin screen = iota
	screenDashboard
)

// Options configures the application model.
type Options struct {
	Ctx context.Context
	// Auth checks credentials. Nil skips the login screen.
	Auth    Authenticator
	Session Session
	// Feed delivers session events; Done ends the wait on Feed.
	Feed <-chan scanner.Event
	Done <-chan struct{}
	// OnDashboard runs once when the dashboard is first shown.
	OnDashboard func()

	GlitchTarget   string
	GlitchInterval time.Duration
	Rand           *rand.Rand
	Logger         *logrus.Logger
}

// App routes between the login and dashboard screens.
type App struct {
	screen      screen
	login       loginModel
	dashboard   dashboardModel
	onDashboard func()
	user        string
	width       int
	height      int
}

// NewApp creates the root model.
func NewApp(opts Options) App {
	if opts.Ctx == nil {
		opts.Ctx = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	app := App{
		login:       newLoginModel(opts.Ctx, opts.Auth, opts.Logger, opts.GlitchTarget, opts.GlitchInterval, opts.Rand),
		dashboard:   newDashboardModel(opts.Ctx, opts.Session, opts.Feed, opts.Done),
		onDashboard: opts.OnDashboard,
	}
	if opts.Auth == nil {
		app.screen = screenDashboard
	}
	return app
}

func (a App) Init() tea.Cmd {
	if a.screen == screenDashboard {
		return a.enterDashboard()
	}
	return a.login.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return a, tea.Quit
		}
		if a.screen == screenDashboard && msg.String() == "q" {
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.Update(msg)
		return a, cmd

	case LoggedInMsg:
		a.user = msg.Email
		a.screen = screenDashboard
		return a, a.enterDashboard()
	}

	var cmd tea.Cmd
	switch a.screen {
	case screenLogin:
		a.login, cmd = a.login.Update(msg)
	case screenDashboard:
		a.dashboard, cmd = a.dashboard.Update(msg)
	}
	return a, cmd
}

func (a App) enterDashboard() tea.Cmd {
	cmds := []tea.Cmd{a.dashboard.Init()}
	if fn := a.onDashboard; fn != nil {
		cmds = append(cmds, func() tea.Msg {
			fn()
			return nil
		})
	}
	return tea.Batch(cmds...)
}

// User returns the email of the logged in operator, if any.
func (a App) User() string {
	return a.user
}

func (a App) View() string {
	if a.screen == screenLogin {
		return a.login.View()
	}
	return a.dashboard.View()
}

// Run starts the program on the terminal and blocks until the user quits
// or ctx is done.
func Run(ctx context.Context, opts Options, progOpts ...tea.ProgramOption) error {
	opts.Ctx = ctx
	progOpts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, progOpts...)
	_, err := tea.NewProgram(NewApp(opts), progOpts...).Run()
	return err
}
