package tui

import (
	"math/rand/v2"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/srg/glitch/internal/glitch"
)

type (
	revealTickMsg struct{}
	burstStartMsg struct{}
	burstStepMsg  struct{}
)

// banner animates the title: a scrambled reveal followed by periodic jitter.
type banner struct {
	reveal   *glitch.Reveal
	jitter   *glitch.Jitter
	interval time.Duration
	frame    string
	offset   int
}

func newBanner(target string, interval time.Duration, rng *rand.Rand) banner {
	if interval <= 0 {
		interval = glitch.DefaultInterval
	}
	r := glitch.NewReveal(target, rng)
	return banner{
		reveal:   r,
		jitter:   glitch.NewJitter(rng),
		interval: interval,
		frame:    r.Next(),
	}
}

func (b banner) Init() tea.Cmd {
	return tea.Batch(b.revealTick(), b.scheduleBurst())
}

func (b banner) Update(msg tea.Msg) (banner, tea.Cmd) {
	switch msg.(type) {
	case revealTickMsg:
		if b.reveal.Done() {
			return b, nil
		}
		b.frame = b.reveal.Next()
		if b.reveal.Done() {
			return b, nil
		}
		return b, b.revealTick()

	case burstStartMsg:
		b.jitter.Start()
		return b.step()

	case burstStepMsg:
		return b.step()
	}
	return b, nil
}

func (b banner) step() (banner, tea.Cmd) {
	offset, ok := b.jitter.Step()
	b.offset = offset
	if !ok || !b.jitter.Active() {
		return b, b.scheduleBurst()
	}
	return b, tea.Tick(glitch.BurstStep, func(time.Time) tea.Msg { return burstStepMsg{} })
}

func (b banner) revealTick() tea.Cmd {
	return tea.Tick(b.interval, func(time.Time) tea.Msg { return revealTickMsg{} })
}

func (b banner) scheduleBurst() tea.Cmd {
	return tea.Tick(b.jitter.NextDelay(), func(time.Time) tea.Msg { return burstStartMsg{} })
}

func (b banner) View() string {
	return glitch.Render(b.frame, b.offset)
}
