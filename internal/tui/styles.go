package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadewadee/mapminer/internal/domain"
	"github.com/sadewadee/mapminer/internal/stage"
)

var (
	colorPrimary   = lipgloss.Color("62")  // Purple/blue
	colorSecondary = lipgloss.Color("244") // Gray
	colorSuccess   = lipgloss.Color("42")  // Green
	colorError     = lipgloss.Color("196") // Red
	colorWarning   = lipgloss.Color("214") // Orange/Yellow
	colorInfo      = lipgloss.Color("39")  // Cyan
	colorMuted     = lipgloss.Color("240") // Dark gray
	colorBorder    = lipgloss.Color("238") // Border gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	infoStyle = lipgloss.NewStyle().
			Foreground(colorInfo)

	fieldLabelStyle = lipgloss.NewStyle().
			Foreground(colorPrimary).
			Bold(true).
			MarginRight(1)

	slotStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			Width(24)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorBorder)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)
)

func renderDivider(length int) string {
	return dividerStyle.Render(strings.Repeat("─", max(length, 1)))
}

func levelStyle(l domain.Level) lipgloss.Style {
	switch l {
	case domain.LevelSuccess:
		return successStyle
	case domain.LevelWarning:
		return warningStyle
	case domain.LevelError:
		return errorStyle
	default:
		return infoStyle
	}
}

func levelMarker(l domain.Level) string {
	switch l {
	case domain.LevelSuccess:
		return "✓"
	case domain.LevelWarning:
		return "!"
	case domain.LevelError:
		return "✗"
	default:
		return "·"
	}
}

func slotBorder(s stage.SlotState) lipgloss.Style {
	switch s {
	case stage.SlotActive:
		return slotStyle.BorderForeground(colorInfo)
	case stage.SlotCompleted:
		return slotStyle.BorderForeground(colorSuccess)
	default:
		return slotStyle.BorderForeground(colorSecondary)
	}
}

func slotMarker(s stage.SlotState) string {
	switch s {
	case stage.SlotActive:
		return infoStyle.Render("● active")
	case stage.SlotCompleted:
		return successStyle.Render("✓ done")
	default:
		return mutedStyle.Render("○ pending")
	}
}
