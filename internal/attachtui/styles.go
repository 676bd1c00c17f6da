package attachtui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/stevehuang0115/agentmux/internal/theme"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBase).
			Background(theme.ColorBlue)

	exitedBadgeStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorBase).
				Background(theme.ColorRed)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(theme.ColorSubtext0).
			Background(theme.ColorSurface0)

	statusKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorLavender).
			Background(theme.ColorSurface0)

	statusValueStyle = lipgloss.NewStyle().
				Foreground(theme.ColorSubtext0).
				Background(theme.ColorSurface0)
)
