package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Box drawing characters
const (
	TopLeft     = "╭"
	TopRight    = "╮"
	BottomLeft  = "╰"
	BottomRight = "╯"
	Horizontal  = "─"
	Vertical    = "│"
	LeftT       = "├"
	RightT      = "┤"
	TopT        = "┬"
	BottomT     = "┴"
	Cross       = "┼"
)

// Selector geometry shared by every picker
const (
	minWidth = 60
	maxWidth = 120
)

// Color palette
const (
	ColorBorder = "240"
	ColorHeader = "252"
	ColorID     = "214"
	ColorName   = "81"
	ColorValue  = "252"
	ColorMuted  = "240"
	ColorHint   = "245"
	ColorOK     = "82"
	ColorWarn   = "214"
	ColorBad    = "203"
)

// Shared styles
var (
	BorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBorder))
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorHeader))
	IDStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorID))
	NameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorName))
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorValue))
	MutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorMuted))
	HintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorHint))
	OKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorOK))
	WarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWarn))
	BadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorBad))
)

// padRight pads a string to the specified display width using runewidth
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return runewidth.Truncate(s, width, "...")
	}
	return s + strings.Repeat(" ", width-sw)
}

// boxTop renders the top border of a box
func boxTop(w int) string {
	return BorderStyle.Render(TopLeft+strings.Repeat(Horizontal, w)+TopRight) + "\n"
}

// boxBottom renders the bottom border of a box
func boxBottom(w int) string {
	return BorderStyle.Render(BottomLeft+strings.Repeat(Horizontal, w)+BottomRight) + "\n"
}

// boxRule renders a horizontal separator inside a box
func boxRule(w int) string {
	return BorderStyle.Render(LeftT+strings.Repeat(Horizontal, w)+RightT) + "\n"
}

// boxRow renders one bordered line, padding the (possibly styled) content
// out to the box width.
func boxRow(content string, w int) string {
	pad := w - lipgloss.Width(content)
	if pad < 0 {
		pad = 0
	}
	return BorderStyle.Render(Vertical) + content + strings.Repeat(" ", pad) + BorderStyle.Render(Vertical) + "\n"
}

// statusBar renders the count-and-hints line shown under a selector
func statusBar(w int, count, hints string) string {
	padding := w + 2 - runewidth.StringWidth(count) - runewidth.StringWidth(hints)
	if padding < 1 {
		padding = 1
	}
	return count + strings.Repeat(" ", padding) + HintStyle.Render(hints) + "\n"
}
