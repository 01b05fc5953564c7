package fancy

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	RootStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	BranchStyle = lipgloss.NewStyle().
			Foreground(ColorDarkGray)

	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	LocationStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	WarnStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	ValidStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)
)

// ValidText styles valid status text (green)
func ValidText(text string) string {
	return ValidStyle.Render(text)
}

// ErrorText styles error text (red)
func ErrorText(text string) string {
	return ErrorStyle.Render(text)
}

// WarnText styles warning text (orange)
func WarnText(text string) string {
	return WarnStyle.Render(text)
}

// PathText styles file paths (gray)
func PathText(text string) string {
	return InfoStyle.Render(text)
}

// LocationText styles a source position such as "WageType.star:3:7".
func LocationText(text string) string {
	return LocationStyle.Render(text)
}

// KeyValue renders "key: value" with the key highlighted.
func KeyValue(key string, value any) string {
	return KeyStyle.Render(key+":") + " " + fmt.Sprint(value)
}
