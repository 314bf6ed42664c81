package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Renderer is the lipgloss renderer bound to stdout.
var Renderer = NewRenderer(os.Stdout)

// NewRenderer binds a renderer to w, using TrueColor when w is a color terminal.
func NewRenderer(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if r.ColorProfile() != termenv.Ascii {
		r.SetColorProfile(termenv.TrueColor)
	}
	return r
}

type Styles struct {
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Remote    lipgloss.Style
	Countdown lipgloss.Style
	Button    lipgloss.Style
	Disabled  lipgloss.Style
	Danger    lipgloss.Style
	Info      lipgloss.Style
	Error     lipgloss.Style
	Solved    lipgloss.Style
}

func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:     r.NewStyle().Foreground(lipgloss.Color("15")).Bold(true),
		Dim:       r.NewStyle().Foreground(lipgloss.Color("245")),
		Remote:    r.NewStyle().Foreground(lipgloss.Color("14")).Underline(true),
		Countdown: r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		Button:    r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Disabled:  r.NewStyle().Foreground(lipgloss.Color("245")).Italic(true),
		Danger:    r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Info:      r.NewStyle().Foreground(lipgloss.Color("14")),
		Error:     r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Solved:    r.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// PlainStyles renders text without any escape sequences.
func PlainStyles() Styles {
	s := lipgloss.NewStyle()
	return Styles{Title: s, Dim: s, Remote: s, Countdown: s, Button: s, Disabled: s, Danger: s, Info: s, Error: s, Solved: s}
}
