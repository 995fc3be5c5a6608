package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across all TUI components
var (
	Green = lipgloss.Color("10") // success, ready
	Red   = lipgloss.Color("9")  // errors
	Grey  = lipgloss.Color("8")  // muted text
	Blue  = lipgloss.Color("4")  // user label, borders
	Pink  = lipgloss.Color("13") // assistant label
	White = lipgloss.Color("15") // emphasized text
)

// Styles returns styled text helpers used by the chat TUI and commands.
type Styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	Status    lipgloss.Style
}

// NewStyles creates the default style set.
func NewStyles() *Styles {
	return &Styles{
		User:      lipgloss.NewStyle().Bold(true).Foreground(Blue),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(Pink),
		System:    lipgloss.NewStyle().Foreground(Grey).Italic(true),
		Error:     lipgloss.NewStyle().Foreground(Red),
		Muted:     lipgloss.NewStyle().Foreground(Grey),
		Status:    lipgloss.NewStyle().Foreground(Green),
	}
}
