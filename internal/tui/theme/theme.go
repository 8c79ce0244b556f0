package theme

import "github.com/charmbracelet/lipgloss"

// Theme defines all colors for the TUI
type Theme struct {
	// Primary colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	// Text colors
	Text        lipgloss.Color
	TextMuted   lipgloss.Color
	TextInverse lipgloss.Color

	// Background colors
	Background          lipgloss.Color
	BackgroundSecondary lipgloss.Color

	// Status colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	// Border colors
	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	BorderMuted lipgloss.Color
}

// Current is the active theme
var Current = DefaultTheme()

// DefaultTheme returns the default parley theme, a cool slate/teal palette
func DefaultTheme() Theme {
	return Theme{
		// Primary colors - muted teal accent
		Primary:   lipgloss.Color("#5FB3A1"), // Teal
		Secondary: lipgloss.Color("#3E5C56"), // Deep teal-gray
		Accent:    lipgloss.Color("#82C4B5"), // Lighter teal

		// Text colors
		Text:        lipgloss.Color("#E8E8E8"), // Soft white
		TextMuted:   lipgloss.Color("#7A7A7A"), // Medium gray
		TextInverse: lipgloss.Color("#16191C"), // Near black

		// Background colors
		Background:          lipgloss.Color("#16191C"), // Dark slate
		BackgroundSecondary: lipgloss.Color("#23282E"), // Slightly lighter

		// Status colors
		Success: lipgloss.Color("#7FB069"), // Green
		Warning: lipgloss.Color("#E6B450"), // Amber
		Error:   lipgloss.Color("#E05561"), // Red
		Info:    lipgloss.Color("#6699CC"), // Blue for user

		// Border colors
		Border:      lipgloss.Color("#32383F"), // Subtle border
		BorderFocus: lipgloss.Color("#5FB3A1"), // Teal on focus
		BorderMuted: lipgloss.Color("#23282E"), // Very subtle
	}
}

// Gruvbox returns a Gruvbox inspired theme
func Gruvbox() Theme {
	return Theme{
		Primary:             lipgloss.Color("#83A598"),
		Secondary:           lipgloss.Color("#B8BB26"),
		Accent:              lipgloss.Color("#FE8019"),
		Text:                lipgloss.Color("#EBDBB2"),
		TextMuted:           lipgloss.Color("#928374"),
		TextInverse:         lipgloss.Color("#282828"),
		Background:          lipgloss.Color("#282828"),
		BackgroundSecondary: lipgloss.Color("#3C3836"),
		Success:             lipgloss.Color("#B8BB26"),
		Warning:             lipgloss.Color("#FABD2F"),
		Error:               lipgloss.Color("#FB4934"),
		Info:                lipgloss.Color("#83A598"),
		Border:              lipgloss.Color("#504945"),
		BorderFocus:         lipgloss.Color("#83A598"),
		BorderMuted:         lipgloss.Color("#3C3836"),
	}
}
