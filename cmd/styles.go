package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette(
	lipgloss.AdaptiveColor{Light: "#CC0029", Dark: "#FF0033"},
	lipgloss.AdaptiveColor{Light: "#02804F", Dark: "#04B575"},
	lipgloss.AdaptiveColor{Light: "#B00000", Dark: "#FF0000"},
	lipgloss.AdaptiveColor{Light: "#B86E00", Dark: "#FFA500"},
	lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#626262"},
)

// Palette holds the styles used for CLI output. Colors adapt to light and dark terminals.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(title, ok, err, warn, help lipgloss.TerminalColor) *Palette {
	return &Palette{
		title: NewBold(title),
		ok:    NewBold(ok),
		err:   NewBold(err),
		warn:  NewStyle(warn),
		help:  NewStyle(help).Italic(true),
	}
}

func NewStyle(fg lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(fg)
}

func NewBold(fg lipgloss.TerminalColor) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

// rule underlines a header of the given display width.
func (p *Palette) rule(width int) string {
	return p.help.Render(strings.Repeat("─", max(width, 12)))
}
