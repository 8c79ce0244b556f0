package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/parley-ai/parley/internal/tui/theme"
)

// Message represents one rendered chat entry
type Message struct {
	Role    string // "user", "model", "system", "error"
	Content string
}

// Messages is the scrollable message list component
type Messages struct {
	viewport         viewport.Model
	messages         []Message
	renderer         *glamour.TermRenderer
	width            int
	height           int
	ready            bool
	welcome          string
	streamingContent string // partial response while a stream is live
}

// NewMessages creates a new messages component
func NewMessages(width, height int) *Messages {
	// Use dark style explicitly to avoid terminal color queries
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width-10),
	)

	// Initialize viewport immediately so content can be set
	vp := viewport.New(width, height)

	return &Messages{
		viewport: vp,
		messages: []Message{},
		renderer: renderer,
		width:    width,
		height:   height,
		ready:    true,
	}
}

// SetSize updates the component dimensions
func (m *Messages) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height

	// Update renderer word wrap - use dark style to avoid terminal queries
	m.renderer, _ = glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width-10),
	)

	m.updateContent()
}

// AddMessage adds a new message
func (m *Messages) AddMessage(msg Message) {
	m.messages = append(m.messages, msg)
	m.updateContent()
}

// SetMessages replaces the whole list, e.g. after resuming a transcript
func (m *Messages) SetMessages(msgs []Message) {
	m.messages = msgs
	m.updateContent()
}

// Clear removes all messages
func (m *Messages) Clear() {
	m.messages = []Message{}
	m.updateContent()
}

// GetViewport returns the viewport for handling scroll input
func (m *Messages) GetViewport() *viewport.Model {
	return &m.viewport
}

// SetWelcome sets the welcome message to show when empty
func (m *Messages) SetWelcome(welcome string) {
	m.welcome = welcome
	m.updateContent()
}

// UpdateStreaming updates the streaming content display
func (m *Messages) UpdateStreaming(content string) {
	m.streamingContent = content
	m.updateContent()
}

// ClearStreaming clears the streaming content
func (m *Messages) ClearStreaming() {
	m.streamingContent = ""
	m.updateContent()
}

// renderMarkdown runs the glamour renderer, falling back to plain text
func (m *Messages) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}

// modelHeader renders the header line above a model response
func modelHeader() string {
	t := theme.Current
	iconStyle := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)
	headerStyle := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)
	return iconStyle.Render("❯") + " " + headerStyle.Render("Parley")
}

// updateContent rebuilds the viewport content
func (m *Messages) updateContent() {
	if !m.ready {
		return
	}

	t := theme.Current
	var sb strings.Builder
	contentWidth := m.width - 4 // Account for borders/padding

	// Show welcome message if no messages
	if len(m.messages) == 0 && m.welcome != "" {
		titleStyle := lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true)
		sb.WriteString("\n" + titleStyle.Render("   ◆ Parley") + "\n\n")

		taglineStyle := lipgloss.NewStyle().
			Foreground(t.Text)
		sb.WriteString(taglineStyle.Render("   Conversations with any model, one interface.") + "\n\n")

		sepStyle := lipgloss.NewStyle().
			Foreground(t.Border)
		sb.WriteString(sepStyle.Render("   "+strings.Repeat("─", 44)) + "\n\n")

		tipStyle := lipgloss.NewStyle().
			Foreground(t.TextMuted)
		for _, tip := range []string{
			"Type a message and press Enter to send",
			"/model and /provider switch the backend",
			"/save stores the conversation, /sessions lists saved ones",
			"/share broadcasts this session over the configured broker",
		} {
			sb.WriteString("   " + tipStyle.Render("• "+tip) + "\n")
		}
		sb.WriteString("\n")

		cmdStyle := lipgloss.NewStyle().
			Foreground(t.TextMuted).
			Italic(true)
		sb.WriteString(cmdStyle.Render("   Type /help for all commands") + "\n")

		m.viewport.SetContent(sb.String())
		return
	}

	for _, msg := range m.messages {
		switch msg.Role {
		case "user":
			iconStyle := lipgloss.NewStyle().
				Foreground(t.Info).
				Bold(true)
			headerStyle := lipgloss.NewStyle().
				Foreground(t.Text).
				Bold(true)
			sb.WriteString(iconStyle.Render("◉") + " " + headerStyle.Render("You") + "\n")

			bodyStyle := lipgloss.NewStyle().
				Foreground(t.Text).
				PaddingLeft(2).
				Width(contentWidth)
			sb.WriteString(bodyStyle.Render(msg.Content) + "\n\n")

		case "model":
			sb.WriteString(modelHeader() + "\n")

			bodyStyle := lipgloss.NewStyle().
				Foreground(t.Text).
				PaddingLeft(2).
				Width(contentWidth)
			sb.WriteString(bodyStyle.Render(m.renderMarkdown(msg.Content)) + "\n\n")

		case "system":
			iconStyle := lipgloss.NewStyle().
				Foreground(t.Info)
			sysStyle := lipgloss.NewStyle().
				Foreground(t.TextMuted).
				Italic(true)
			sb.WriteString(iconStyle.Render("ℹ") + " " + sysStyle.Render(msg.Content) + "\n\n")

		case "error":
			iconStyle := lipgloss.NewStyle().
				Foreground(t.Error).
				Bold(true)
			errStyle := lipgloss.NewStyle().
				Foreground(t.Error)
			sb.WriteString(iconStyle.Render("✗") + " " + errStyle.Render(msg.Content) + "\n\n")
		}
	}

	// Show streaming content if any
	if m.streamingContent != "" {
		sb.WriteString(modelHeader() + "\n")

		bodyStyle := lipgloss.NewStyle().
			Foreground(t.Text).
			PaddingLeft(2).
			Width(contentWidth)

		cursorStyle := lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true)
		sb.WriteString(bodyStyle.Render(m.renderMarkdown(m.streamingContent)) + cursorStyle.Render("▌") + "\n\n")
	}

	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

// View renders the messages
func (m *Messages) View() string {
	if !m.ready {
		return ""
	}
	return m.viewport.View()
}
