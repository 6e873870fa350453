package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette (gruvbox).
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

var (
	StyleGreen  = fg(ColorGreen)
	StyleYellow = fg(ColorYellow)
	StyleRed    = fg(ColorRed)
	StyleBlue   = fg(ColorBlue)
	StylePurple = fg(ColorPurple)
	StyleDim    = fg(ColorDim)
	StyleFg     = fg(ColorFg)
	StyleHeader = fg(ColorHeader).Bold(true)
	StyleBold   = fg(ColorFg).Bold(true)
)

// PassMark is the lowest percentage that counts as a pass.
const PassMark = 50.0

// goodMark separates a pass (yellow) from a comfortable pass (green).
const goodMark = 80.0

func ScoreStyle(score float64) lipgloss.Style {
	if score < PassMark {
		return StyleRed
	}
	if score < goodMark {
		return StyleYellow
	}
	return StyleGreen
}

// Score renders a percentage such as "66.7%" in its score color.
func Score(score float64) string {
	return ScoreStyle(score).Render(fmt.Sprintf("%.1f%%", score))
}

// Header renders an upper-cased section title over a rule of equal width.
func Header(text string) string {
	title := strings.ToUpper(text)
	rule := strings.Repeat("─", len([]rune(title)))
	return StyleHeader.Render(title) + "\n" + StyleDim.Render(rule)
}

func Dim(text string) string  { return StyleDim.Render(text) }
func Bold(text string) string { return StyleBold.Render(text) }

func Error(err error) string {
	return StyleRed.Render("Error: " + err.Error())
}
