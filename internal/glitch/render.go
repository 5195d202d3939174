package glitch

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Layer colors.
var (
	MagentaLayer = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF00FF")).Bold(true)
	CyanLayer    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")).Bold(true)
	TextLayer    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
)

const (
	// pixelsPerColumn converts burst offsets into terminal columns.
	pixelsPerColumn = 5
	// ghostShift is the column displacement of the colored layers.
	ghostShift = 1
	// margin keeps shifted layers inside the rendered block.
	margin = ghostShift + 1
)

type layer int

const (
	layerNone layer = iota
	layerMagenta
	layerCyan
	layerText
)

// Width returns the rendered width of text.
func Width(text string) int {
	return len([]rune(text)) + 2*margin
}

// Render draws text as three overlaid layers: magenta shifted right, cyan
// shifted left and the plain text on top, displaced by offset (in burst
// units). The result always has Width(text) columns.
func Render(text string, offset int) string {
	runes := []rune(text)
	width := Width(text)
	cells := make([]rune, width)
	owner := make([]layer, width)
	for i := range cells {
		cells[i] = ' '
	}

	shift := offset / pixelsPerColumn
	place := func(l layer, col int) {
		for i, r := range runes {
			c := margin + col + i
			if c < 0 || c >= width {
				continue
			}
			cells[c], owner[c] = r, l
		}
	}
	place(layerMagenta, shift+ghostShift)
	place(layerCyan, shift-ghostShift)
	place(layerText, shift)

	var b strings.Builder
	start := 0
	for i := 1; i <= width; i++ {
		if i < width && owner[i] == owner[start] {
			continue
		}
		b.WriteString(styleFor(owner[start]).Render(string(cells[start:i])))
		start = i
	}
	return b.String()
}

func styleFor(l layer) lipgloss.Style {
	switch l {
	case layerMagenta:
		return MagentaLayer
	case layerCyan:
		return CyanLayer
	case layerText:
		return TextLayer
	default:
		return lipgloss.NewStyle()
	}
}
