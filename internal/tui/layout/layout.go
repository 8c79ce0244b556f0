// Package layout computes the fixed vertical regions of the chat screen.
package layout

import "github.com/charmbracelet/lipgloss"

// Fixed region heights. The messages region absorbs whatever is left.
const (
	HeaderHeight = 2
	StatusHeight = 2
	EditorHeight = 5
)

// Frame is the terminal geometry the screen is laid out in.
type Frame struct {
	Width  int
	Height int
}

// MessagesHeight returns the height left for the scrollback region.
func (f Frame) MessagesHeight() int {
	h := f.Height - HeaderHeight - StatusHeight - EditorHeight
	if h < 0 {
		return 0
	}
	return h
}

// Stack joins the screen regions top to bottom. The suggestions region may
// be empty; it overlays space that otherwise belongs to the messages area.
func (f Frame) Stack(header, messages, suggestions, editor, status string) string {
	messages = lipgloss.NewStyle().
		Height(f.MessagesHeight()).
		Render(messages)

	if suggestions != "" {
		return lipgloss.JoinVertical(
			lipgloss.Left,
			header,
			messages,
			suggestions,
			editor,
			status,
		)
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		messages,
		editor,
		status,
	)
}
