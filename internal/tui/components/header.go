package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/parley-ai/parley/internal/tui/theme"
)

// Header renders the application header
type Header struct {
	Width    int
	Version  string
	Provider string
	Model    string
	Sharing  bool
}

// NewHeader creates a new header component
func NewHeader(width int, version, provider, model string) *Header {
	return &Header{
		Width:    width,
		Version:  version,
		Provider: provider,
		Model:    model,
	}
}

// SetWidth updates the header width
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// SetBackend updates the displayed provider and model
func (h *Header) SetBackend(provider, model string) {
	h.Provider = provider
	h.Model = model
}

// SetSharing toggles the live-share indicator
func (h *Header) SetSharing(sharing bool) {
	h.Sharing = sharing
}

// View renders the header
func (h *Header) View() string {
	t := theme.Current

	logoStyle := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)
	logo := logoStyle.Render("◆ Parley")

	versionStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.BackgroundSecondary).
		Padding(0, 1).
		Render(fmt.Sprintf("v%s", h.Version))

	// Active backend, provider dimmed and model prominent
	providerStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted)
	modelStyle := lipgloss.NewStyle().
		Foreground(t.Text).
		Bold(true)
	backend := providerStyle.Render(h.Provider+"/") + modelStyle.Render(h.Model)

	rightPart := backend
	if h.Sharing {
		shareStyle := lipgloss.NewStyle().
			Foreground(t.Warning)
		rightPart = shareStyle.Render("⇡ live") + "  " + backend
	}

	leftPart := lipgloss.JoinHorizontal(
		lipgloss.Center,
		logo,
		"  ",
		versionStyle,
	)

	spacing := h.Width - lipgloss.Width(leftPart) - lipgloss.Width(rightPart) - 2
	if spacing < 1 {
		spacing = 1
	}

	header := lipgloss.JoinHorizontal(
		lipgloss.Center,
		leftPart,
		lipgloss.NewStyle().Width(spacing).Render(""),
		rightPart,
	)

	separator := lipgloss.NewStyle().
		Foreground(t.Border).
		Width(h.Width).
		Render(strings.Repeat("─", h.Width))

	return header + "\n" + separator
}
