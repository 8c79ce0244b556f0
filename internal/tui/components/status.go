package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/parley-ai/parley/internal/tui/theme"
)

// Status renders the status bar at the bottom
type Status struct {
	Width      int
	Model      string
	Thinking   bool
	AuthState  string
	TokenCount int
}

// NewStatus creates a new status bar
func NewStatus(width int) *Status {
	return &Status{
		Width: width,
	}
}

// SetWidth updates the status bar width
func (s *Status) SetWidth(width int) {
	s.Width = width
}

// SetThinking sets the thinking state
func (s *Status) SetThinking(thinking bool) {
	s.Thinking = thinking
}

// SetModel sets the model name
func (s *Status) SetModel(model string) {
	s.Model = model
}

// SetAuthState sets the auth indicator text
func (s *Status) SetAuthState(state string) {
	s.AuthState = state
}

// SetTokenCount sets the running prompt-size estimate
func (s *Status) SetTokenCount(count int) {
	s.TokenCount = count
}

// View renders the status bar
func (s *Status) View() string {
	t := theme.Current

	hintStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted)
	hint := hintStyle.Render("Enter to send · Ctrl+A auth · Ctrl+C quit")

	modelStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.BackgroundSecondary).
		Padding(0, 1)
	right := modelStyle.Render(s.Model)

	if s.TokenCount > 0 {
		tokenStyle := lipgloss.NewStyle().
			Foreground(t.TextMuted)
		right = tokenStyle.Render(fmt.Sprintf("~%d tok ", s.TokenCount)) + right
	}

	if s.AuthState != "" && s.AuthState != "authenticated" {
		authStyle := lipgloss.NewStyle().
			Foreground(t.Warning)
		right = authStyle.Render("⚠ "+s.AuthState) + "  " + right
	}

	if s.Thinking {
		thinkStyle := lipgloss.NewStyle().
			Foreground(t.Primary)
		right = thinkStyle.Render("● thinking...")
	}

	leftWidth := lipgloss.Width(hint)
	rightWidth := lipgloss.Width(right)
	spacing := s.Width - leftWidth - rightWidth - 2

	if spacing < 0 {
		spacing = 0
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		hint,
		lipgloss.NewStyle().Width(spacing).Render(""),
		right,
	)
}
