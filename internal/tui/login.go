package tui

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/srg/glitch/internal/auth"
)

const (
	msgFillAllFields = "Please fill in all fields"
	msgAccessDenied  = "Access Denied: Invalid credentials"
	msgLoginFailed   = "Login failed"

	inputWidth = 36
)

// Authenticator verifies login credentials.
type Authenticator interface {
	CheckCredentials(ctx context.Context, email, password string) (bool, error)
}

type loginResultMsg struct {
	ok  bool
	err error
}

// LoggedInMsg is sent once the credentials were accepted.
type LoggedInMsg struct {
	Email string
}

type loginField int

const (
	fieldEmail loginField = iota
	fieldPassword
)

// loginModel is the credential screen under the glitch banner.
type loginModel struct {
	ctx      context.Context
	auth     Authenticator
	logger   *logrus.Logger
	banner   banner
	email    textinput.Model
	password textinput.Model
	focus    loginField
	spinner  spinner.Model
	checking bool
	message  string
	styles   styles
}

func newLoginModel(ctx context.Context, a Authenticator, logger *logrus.Logger, target string, interval time.Duration, rng *rand.Rand) loginModel {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Width = inputWidth
	email.Prompt = ""
	email.Focus()

	password := textinput.New()
	password.Placeholder = "••••••"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.Width = inputWidth
	password.Prompt = ""

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(gradientStart))

	return loginModel{
		ctx:      ctx,
		auth:     a,
		logger:   logger,
		banner:   newBanner(target, interval, rng),
		email:    email,
		password: password,
		spinner:  sp,
		styles:   newStyles(),
	}
}

func (m loginModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.banner.Init())
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case revealTickMsg, burstStartMsg, burstStepMsg:
		var cmd tea.Cmd
		m.banner, cmd = m.banner.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if !m.checking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loginResultMsg:
		return m.handleResult(msg)

	case tea.KeyMsg:
		if m.checking {
			return m, nil
		}
		//nolint:exhaustive // Default case forwards the key to the focused input
		switch msg.Type {
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
			return m.toggleFocus()
		}
	}

	return m.updateInputs(msg)
}

func (m loginModel) updateInputs(msg tea.Msg) (loginModel, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == fieldEmail {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m loginModel) toggleFocus() (loginModel, tea.Cmd) {
	if m.focus == fieldEmail {
		m.focus = fieldPassword
		m.email.Blur()
		return m, m.password.Focus()
	}
	m.focus = fieldEmail
	m.password.Blur()
	return m, m.email.Focus()
}

func (m loginModel) submit() (loginModel, tea.Cmd) {
	email := strings.TrimSpace(m.email.Value())
	password := m.password.Value()
	if email == "" || password == "" {
		m.message = msgFillAllFields
		return m, nil
	}

	m.checking = true
	m.message = ""
	return m, tea.Batch(m.spinner.Tick, m.check(email, password))
}

func (m loginModel) check(email, password string) tea.Cmd {
	ctx, a := m.ctx, m.auth
	return func() tea.Msg {
		ok, err := a.CheckCredentials(ctx, email, password)
		return loginResultMsg{ok: ok, err: err}
	}
}

func (m loginModel) handleResult(msg loginResultMsg) (loginModel, tea.Cmd) {
	m.checking = false
	switch {
	case errors.Is(msg.err, auth.ErrMissingCredentials):
		m.message = msgFillAllFields
	case msg.err != nil:
		m.logger.WithError(msg.err).Error("Login failed")
		m.message = msgLoginFailed
	case !msg.ok:
		m.message = msgAccessDenied
	default:
		email := strings.TrimSpace(m.email.Value())
		m.password.SetValue("")
		return m, func() tea.Msg { return LoggedInMsg{Email: email} }
	}
	return m, nil
}

func (m loginModel) View() string {
	s := m.styles

	field := func(label string, in textinput.Model, focused bool) string {
		box := s.input
		if focused {
			box = s.focusedInput
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			s.label.Render(strings.ToUpper(label)),
			box.Width(inputWidth+2).Render(in.View()),
		)
	}

	button := s.button.Render(gradient("[ LOG IN ]", gradientStart, gradientEnd))
	if m.checking {
		button = s.button.Render(m.spinner.View() + " checking...")
	}

	parts := []string{
		m.banner.View(),
		"",
		field("Email", m.email, m.focus == fieldEmail),
		field("Password", m.password, m.focus == fieldPassword),
		"",
		button,
	}
	if m.message != "" {
		parts = append(parts, "", s.err.Render(m.message))
	}
	parts = append(parts, "", s.hint.Render("tab switch field • enter log in • esc quit"))

	return s.app.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
