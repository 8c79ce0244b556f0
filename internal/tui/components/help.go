package components

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/parley-ai/parley/internal/tui/theme"
)

// HelpDialog shows available keyboard shortcuts
type HelpDialog struct {
	Width  int
	Height int
}

// NewHelpDialog creates a help dialog
func NewHelpDialog() *HelpDialog {
	return &HelpDialog{
		Width:  52,
		Height: 22,
	}
}

// View renders the help dialog
func (h *HelpDialog) View() string {
	t := theme.Current

	title := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"enter", "Send message"},
		{"ctrl+a", "Open auth dialog"},
		{"ctrl+c", "Quit"},
		{"ctrl+l", "Clear chat"},
		{"esc", "Cancel/Close"},
		{"page up/down", "Scroll messages"},
		{"", ""},
		{"/help", "Show commands"},
		{"/clear", "Clear the screen"},
		{"/reset", "Reset conversation"},
		{"/model <name>", "Switch model"},
		{"/provider <id>", "Switch provider"},
		{"/system <text>", "Set system prompt"},
		{"/save", "Save the conversation"},
		{"/sessions", "List saved conversations"},
		{"/tokens", "Show prompt size"},
		{"/config", "Show or set configuration"},
		{"/quit", "Exit"},
	}

	var content string
	for _, s := range shortcuts {
		if s.key == "" {
			content += "\n"
			continue
		}

		key := lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true).
			Width(17).
			Render(s.key)

		desc := lipgloss.NewStyle().
			Foreground(t.Text).
			Render(s.desc)

		content += key + desc + "\n"
	}

	footer := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Render("\nPress any key to close")

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Width(h.Width)

	return box.Render(title + "\n\n" + content + footer)
}

// PlaceOverlay places the dialog centered on the screen
func PlaceOverlay(overlay, background string, bgWidth, bgHeight int) string {
	return lipgloss.Place(
		bgWidth,
		bgHeight,
		lipgloss.Center,
		lipgloss.Center,
		overlay,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(theme.Current.Background),
	)
}
