package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/srg/glitch/scanner"
)

const (
	titleText       = "SCANNER"
	statusScanning  = "Scanning for signals..."
	statusOffline   = "Scanner Offline"
	emptyListText   = "No devices found nearby."
	pulseInterval   = 600 * time.Millisecond
	cardHeight      = 4
	dashboardChrome = 7
)

// Session is the scan registry the dashboard displays and controls.
type Session interface {
	Peripherals() []scanner.Peripheral
	IsScanning() bool
	StartScan(ctx context.Context) error
	StopScan()
}

type (
	sessionEventMsg scanner.Event
	feedClosedMsg   struct{}
	pulseMsg        struct{}
	scanToggledMsg  struct{ err error }
)

// dashboardModel lists discovered peripherals in first-seen order.
type dashboardModel struct {
	ctx         context.Context
	session     Session
	feed        <-chan scanner.Event
	done        <-chan struct{}
	peripherals []scanner.Peripheral
	scanning    bool
	lastErr     error
	pulse       bool
	scroll      int
	width       int
	height      int
	styles      styles
}

func newDashboardModel(ctx context.Context, session Session, feed <-chan scanner.Event, done <-chan struct{}) dashboardModel {
	return dashboardModel{
		ctx:     ctx,
		session: session,
		feed:    feed,
		done:    done,
		width:   defaultWidth,
		styles:  newStyles(),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), pulseTick(), m.refreshCmd())
}

func (m dashboardModel) Update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionEventMsg:
		if msg.Type == scanner.EventScanError {
			m.lastErr = msg.Err
		}
		if msg.Type == scanner.EventStateChanged && msg.State == scanner.Scanning {
			m.lastErr = nil
		}
		m.refresh()
		return m, m.waitForEvent()

	case refreshMsg:
		m.refresh()
		return m, nil

	case feedClosedMsg:
		m.refresh()
		return m, nil

	case pulseMsg:
		m.pulse = !m.pulse
		return m, pulseTick()

	case scanToggledMsg:
		m.lastErr = msg.err
		m.refresh()
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.clampScroll()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			m.scroll--
			m.clampScroll()
		case "down", "j":
			m.scroll++
			m.clampScroll()
		case "s":
			return m, m.toggleScan()
		}
	}
	return m, nil
}

type refreshMsg struct{}

func (m dashboardModel) refreshCmd() tea.Cmd {
	return func() tea.Msg { return refreshMsg{} }
}

func (m *dashboardModel) refresh() {
	if m.session == nil {
		return
	}
	m.peripherals = m.session.Peripherals()
	m.scanning = m.session.IsScanning()
	m.clampScroll()
}

func (m dashboardModel) waitForEvent() tea.Cmd {
	feed, done := m.feed, m.done
	if feed == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case ev := <-feed:
			return sessionEventMsg(ev)
		case <-done:
			return feedClosedMsg{}
		}
	}
}

func (m dashboardModel) toggleScan() tea.Cmd {
	session, ctx, scanning := m.session, m.ctx, m.scanning
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		if scanning {
			session.StopScan()
			return scanToggledMsg{}
		}
		return scanToggledMsg{err: session.StartScan(ctx)}
	}
}

func pulseTick() tea.Cmd {
	return tea.Tick(pulseInterval, func(time.Time) tea.Msg { return pulseMsg{} })
}

func (m dashboardModel) visibleCards() int {
	if m.height <= 0 {
		return len(m.peripherals)
	}
	return max(1, (m.height-dashboardChrome)/cardHeight)
}

func (m *dashboardModel) clampScroll() {
	maxScroll := max(0, len(m.peripherals)-m.visibleCards())
	m.scroll = min(max(m.scroll, 0), maxScroll)
}

func (m dashboardModel) View() string {
	s := m.styles

	dot, status := s.dotOff.Render("●"), statusOffline
	if m.scanning {
		dot, status = s.dotOn.Render("●"), statusScanning
		if m.pulse {
			dot = s.dotOnDim.Render("●")
		}
	}

	header := lipgloss.JoinVertical(lipgloss.Left,
		s.title.Render(titleText),
		dot+" "+s.status.Render(strings.ToUpper(status)),
	)

	var body string
	if len(m.peripherals) == 0 {
		body = s.empty.Render(emptyListText)
	} else {
		end := min(len(m.peripherals), m.scroll+m.visibleCards())
		cards := make([]string, 0, end-m.scroll)
		for _, p := range m.peripherals[m.scroll:end] {
			cards = append(cards, m.renderCard(p))
		}
		body = lipgloss.JoinVertical(lipgloss.Left, cards...)
	}

	parts := []string{header, "", body}
	if m.lastErr != nil {
		parts = append(parts, "", s.err.Render("BLE scan error: "+m.lastErr.Error()))
	}
	footer := fmt.Sprintf("%d devices • s start/stop • ↑/↓ scroll • q quit", len(m.peripherals))
	parts = append(parts, "", s.hint.Render(footer))

	return s.app.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m dashboardModel) renderCard(p scanner.Peripheral) string {
	s := m.styles
	inner := max(20, m.width-2*cardPaddingX-2-4)

	name := s.cardName.Render(p.DisplayName())
	rssi := s.cardRSSI.Render(fmt.Sprintf("%d dBm", p.RSSI))
	gap := max(1, inner-lipgloss.Width(name)-lipgloss.Width(rssi))

	top := name + strings.Repeat(" ", gap) + rssi
	detail := p.ID
	if p.Manufacturer != "" {
		detail += " · " + p.Manufacturer
	}
	return s.card.Width(inner + 2*cardPaddingX).Render(top + "\n" + s.cardID.Render(detail))
}
