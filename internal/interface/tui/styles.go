package tui

import "github.com/charmbracelet/lipgloss"

// Color palette, carried over from the teacher's dashboard.
var (
	ColorPrimary   = lipgloss.Color("205")
	ColorSecondary = lipgloss.Color("62")
	ColorSuccess   = lipgloss.Color("82")
	ColorWarning   = lipgloss.Color("214")
	ColorError     = lipgloss.Color("196")
	ColorMuted     = lipgloss.Color("240")
	ColorWhite     = lipgloss.Color("255")
	ColorDark      = lipgloss.Color("236")
)

var (
	HeaderTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorWhite)

	HeaderInfoStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary).
			Padding(1)

	BoxTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
				Foreground(ColorMuted)

	StatusOnlineStyle = lipgloss.NewStyle().
				Foreground(ColorSuccess)

	StatusOfflineStyle = lipgloss.NewStyle().
				Foreground(ColorError)

	BoldStyle = lipgloss.NewStyle().Bold(true)

	MutedStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	ErrorStyle = lipgloss.NewStyle().Foreground(ColorError)

	FilterPromptStyle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true)
)

// StatusIcon renders a small dot for a connection/document status.
func StatusIcon(online bool) string {
	if online {
		return StatusOnlineStyle.Render("●")
	}
	return StatusOfflineStyle.Render("○")
}
