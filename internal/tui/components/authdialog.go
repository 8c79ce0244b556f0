package components

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/parley-ai/parley/internal/tui/theme"
)

// AuthMethod is one selectable entry in the auth dialog.
type AuthMethod struct {
	ID   string // e.g. "gemini-api-key"
	Name string // e.g. "Gemini API key"
}

// DefaultAuthMethods lists the supported sign-in methods.
var DefaultAuthMethods = []AuthMethod{
	{ID: "gemini-api-key", Name: "Gemini API key"},
	{ID: "deepseek-api-key", Name: "DeepSeek API key"},
	{ID: "openai-api-key", Name: "OpenAI API key"},
}

// AuthDialog is the modal for choosing an authentication method.
type AuthDialog struct {
	Width    int
	methods  []AuthMethod
	selected int
	errText  string
	busy     bool
}

// NewAuthDialog creates the dialog with the default method list.
func NewAuthDialog() *AuthDialog {
	return &AuthDialog{
		Width:   54,
		methods: DefaultAuthMethods,
	}
}

// MoveUp moves the selection up.
func (d *AuthDialog) MoveUp() {
	if d.selected > 0 {
		d.selected--
	}
}

// MoveDown moves the selection down.
func (d *AuthDialog) MoveDown() {
	if d.selected < len(d.methods)-1 {
		d.selected++
	}
}

// Selected returns the highlighted method id.
func (d *AuthDialog) Selected() string {
	return d.methods[d.selected].ID
}

// SetError attaches a failure message shown under the list.
func (d *AuthDialog) SetError(text string) {
	d.errText = text
}

// SetBusy marks an attempt as in flight; input is ignored while busy.
func (d *AuthDialog) SetBusy(busy bool) {
	d.busy = busy
}

// IsBusy reports whether an attempt is running.
func (d *AuthDialog) IsBusy() bool {
	return d.busy
}

// View renders the dialog.
func (d *AuthDialog) View() string {
	t := theme.Current

	title := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Render("Sign in")

	intro := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Render("Choose how to authenticate:")

	var rows string
	for i, m := range d.methods {
		marker := "  "
		nameStyle := lipgloss.NewStyle().Foreground(t.Text)
		if i == d.selected {
			marker = "› "
			nameStyle = nameStyle.Foreground(t.Accent).Bold(true)
		}
		markerStyle := lipgloss.NewStyle().Foreground(t.Primary)
		rows += markerStyle.Render(marker) + nameStyle.Render(m.Name) + "\n"
	}

	var footer string
	switch {
	case d.busy:
		footer = lipgloss.NewStyle().
			Foreground(t.Primary).
			Render("Authenticating... (Esc to cancel)")
	case d.errText != "":
		footer = lipgloss.NewStyle().
			Foreground(t.Error).
			Width(d.Width-6).
			Render(d.errText) + "\n" +
			lipgloss.NewStyle().
				Foreground(t.TextMuted).
				Render("Pick another method or press Esc")
	default:
		footer = lipgloss.NewStyle().
			Foreground(t.TextMuted).
			Render("↑↓ navigate • Enter to select • Esc to close")
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderFocus).
		Padding(1, 2).
		Width(d.Width)

	return box.Render(title + "\n\n" + intro + "\n\n" + rows + "\n" + footer)
}
