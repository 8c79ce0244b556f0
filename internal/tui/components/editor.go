package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/parley-ai/parley/internal/tui/theme"
)

// Editor is the input area at the bottom of the screen.
type Editor struct {
	area    textarea.Model
	width   int
	height  int
	focused bool
}

// NewEditor creates the input area sized to the given frame region.
func NewEditor(width, height int) *Editor {
	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.Prompt = "❯ "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(width - 6)
	ta.SetHeight(height - 2)

	muted := lipgloss.NewStyle().Foreground(theme.Current.TextMuted)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = muted
	ta.BlurredStyle.Placeholder = muted
	ta.Focus()

	return &Editor{area: ta, width: width, height: height, focused: true}
}

// SetSize updates the editor dimensions.
func (e *Editor) SetSize(width, height int) {
	e.width = width
	e.height = height
	e.area.SetWidth(width - 6)
	e.area.SetHeight(height - 2)
}

// Focus gives the editor keyboard focus.
func (e *Editor) Focus() {
	e.focused = true
	e.area.Focus()
}

// Blur removes keyboard focus.
func (e *Editor) Blur() {
	e.focused = false
	e.area.Blur()
}

// Value returns the current input with terminal control sequences removed
// and surrounding whitespace trimmed. Some terminals answer OSC color
// queries into stdin faster than the runtime swallows them, so the reply
// can end up typed into the textarea.
func (e *Editor) Value() string {
	return strings.TrimSpace(stripControlSequences(e.area.Value()))
}

// Reset clears the input.
func (e *Editor) Reset() {
	e.area.Reset()
}

// SetValue replaces the input text.
func (e *Editor) SetValue(value string) {
	e.area.SetValue(value)
}

// Update forwards messages to the underlying textarea.
func (e *Editor) Update(msg tea.Msg) (*Editor, tea.Cmd) {
	var cmd tea.Cmd
	e.area, cmd = e.area.Update(msg)
	return e, cmd
}

// View renders the bordered input area.
func (e *Editor) View() string {
	t := theme.Current
	border := t.Border
	if e.focused {
		border = t.BorderFocus
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(e.width - 2).
		Padding(0, 1).
		Render(e.area.View())
}

// stripControlSequences drops escape sequences from typed input: OSC
// sequences run to BEL or ESC-backslash, CSI sequences to their final byte,
// other two-byte sequences are dropped whole. A leaked OSC 11 reply that
// already lost its ESC is removed up to its terminator. Printable text
// passes through untouched.
func stripControlSequences(s string) string {
	if strings.ContainsRune(s, 0x1b) {
		var b strings.Builder
		for i := 0; i < len(s); i++ {
			if s[i] != 0x1b {
				b.WriteByte(s[i])
				continue
			}
			if i+1 >= len(s) {
				break
			}
			switch s[i+1] {
			case ']':
				j := i + 2
				for j < len(s) && s[j] != 0x07 && !(s[j] == 0x1b && j+1 < len(s) && s[j+1] == '\\') {
					j++
				}
				if j < len(s) && s[j] == 0x1b {
					j++
				}
				i = j
			case '[':
				j := i + 2
				for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
					j++
				}
				i = j
			default:
				i++
			}
		}
		s = b.String()
	}

	for {
		start := strings.Index(s, "]11;")
		if start == -1 {
			return s
		}
		end := strings.IndexAny(s[start:], "\x07 \n\t")
		if end == -1 {
			return s[:start]
		}
		s = s[:start] + s[start+end+1:]
	}
}
