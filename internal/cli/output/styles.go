package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the lipgloss styles used by the renderer.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Key     lipgloss.Style
	Code    lipgloss.Style
	Path    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles builds styles bound to w. Non-terminal writers get the ASCII
// profile so no escape codes reach pipes and files.
func NewStyles(w io.Writer, isTTY bool) *Styles {
	lr := lipgloss.NewRenderer(w)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	}

	return &Styles{
		Header1: lr.NewStyle().Bold(true).Underline(true),
		Header2: lr.NewStyle().Bold(true),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(lipgloss.Color("245")),
		Key:     lr.NewStyle().Foreground(lipgloss.Color("39")),
		Code:    lr.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		Path:    lr.NewStyle().Foreground(lipgloss.Color("111")),
		Success: lr.NewStyle().Foreground(lipgloss.Color("42")),
		Warning: lr.NewStyle().Foreground(lipgloss.Color("214")),
		Error:   lr.NewStyle().Foreground(lipgloss.Color("196")),
	}
}
