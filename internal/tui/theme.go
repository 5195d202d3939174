// Package tui implements the terminal screens: login, scanner dashboard and
// the router between them.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	deepPurple    = "#2E004E"
	neonPurple    = "#6200EA"
	gradientStart = "#D500F9"
	gradientEnd   = "#651FFF"
	lavender      = "#D1C4E9"
	online        = "#4ADE80"
	offline       = "#F87171"
	errorRed      = "#FF5555"
	white         = "#FFFFFF"
	muted         = "#9E8CB5"
	faint         = "#6B5B7B"

	cardPaddingX = 2
	defaultWidth = 60
)

type styles struct {
	app, title, status, label, input, focusedInput, button, err, hint, muted, empty lipgloss.Style
	card, cardName, cardRSSI, cardID                                                lipgloss.Style
	dotOn, dotOnDim, dotOff                                                         lipgloss.Style
}

func newStyles() styles {
	return styles{
		app: lipgloss.NewStyle().
			Padding(1, 2),
		title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(white)).
			Background(lipgloss.Color(neonPurple)).
			Bold(true).
			Padding(0, 1),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color(muted)),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(muted)).
			Bold(true),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(faint)).
			Padding(0, 1),
		focusedInput: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(gradientStart)).
			Padding(0, 1),
		button: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1),
		err: lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorRed)).
			Bold(true),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color(faint)),
		muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(muted)),
		empty: lipgloss.NewStyle().
			Foreground(lipgloss.Color(faint)).
			MarginTop(2),
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(neonPurple)).
			Padding(0, cardPaddingX),
		cardName: lipgloss.NewStyle().
			Foreground(lipgloss.Color(white)).
			Bold(true),
		cardRSSI: lipgloss.NewStyle().
			Foreground(lipgloss.Color(lavender)).
			Bold(true),
		cardID: lipgloss.NewStyle().
			Foreground(lipgloss.Color(muted)),
		dotOn: lipgloss.NewStyle().
			Foreground(lipgloss.Color(online)),
		dotOnDim: lipgloss.NewStyle().
			Foreground(lipgloss.Color(deepPurple)),
		dotOff: lipgloss.NewStyle().
			Foreground(lipgloss.Color(offline)),
	}
}

// gradient colors text from one hex color to another, left to right.
func gradient(text, from, to string) string {
	start, err1 := colorful.Hex(from)
	end, err2 := colorful.Hex(to)
	runes := []rune(text)
	if err1 != nil || err2 != nil || len(runes) == 0 {
		return text
	}

	var b strings.Builder
	for i, r := range runes {
		t := 0.0
		if len(runes) > 1 {
			t = float64(i) / float64(len(runes)-1)
		}
		c := start.BlendLuv(end, t).Clamped()
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Hex())).
			Bold(true).
			Render(string(r)))
	}
	return b.String()
}
