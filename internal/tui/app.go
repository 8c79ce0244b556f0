package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/parley-ai/parley/internal/auth"
	"github.com/parley-ai/parley/internal/chat"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/history"
	"github.com/parley-ai/parley/internal/message"
	"github.com/parley-ai/parley/internal/provider"
	"github.com/parley-ai/parley/internal/share"
	"github.com/parley-ai/parley/internal/tui/components"
	"github.com/parley-ai/parley/internal/tui/layout"
	"github.com/parley-ai/parley/internal/tui/theme"
)

const version = "0.1.0"

// Options configures the TUI.
type Options struct {
	Session     *chat.Session
	Auth        *auth.Controller
	Store       *history.Store
	Broadcaster *share.Broadcaster // nil when not sharing
	Provider    string
	ModelName   string
	// AutoSave resumes saving into an existing transcript id.
	AutoSave string
}

// Streaming message types
type streamEventChanMsg struct {
	events <-chan provider.StreamEvent
}

type streamChunkMsg struct {
	text string
}

type streamDoneMsg struct {
	text  string
	usage message.Usage
}

type streamErrMsg struct {
	err error
}

type streamClosedMsg struct{}

// Auth flow message types
type authResultMsg struct {
	err error
}

type tokenCountMsg struct {
	count int
}

// Model is the main TUI model
type Model struct {
	session *chat.Session
	authCtl *auth.Controller
	store   *history.Store
	caster  *share.Broadcaster

	providerName string
	modelName    string
	transcriptID string // non-empty once the conversation autosaves

	// Components
	header      *components.Header
	messages    *components.Messages
	editor      *components.Editor
	status      *components.Status
	help        *components.HelpDialog
	suggestions *components.Suggestions
	authDialog  *components.AuthDialog
	spinner     spinner.Model

	// Layout
	frame layout.Frame

	// State
	ready            bool
	thinking         bool
	showHelp         bool
	showAuth         bool
	streamingContent string
	pendingUser      string // the message currently being streamed
	eventChan        <-chan provider.StreamEvent
	cancelStream     context.CancelFunc
}

// New creates a new TUI model
func New(opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	status := components.NewStatus(80)
	status.SetModel(opts.ModelName)

	header := components.NewHeader(80, version, opts.Provider, opts.ModelName)
	header.SetSharing(opts.Broadcaster != nil)

	return Model{
		session:      opts.Session,
		authCtl:      opts.Auth,
		store:        opts.Store,
		caster:       opts.Broadcaster,
		providerName: opts.Provider,
		modelName:    opts.ModelName,
		transcriptID: opts.AutoSave,
		header:       header,
		status:       status,
		help:         components.NewHelpDialog(),
		suggestions:  components.NewSuggestions(),
		authDialog:   components.NewAuthDialog(),
		spinner:      sp,
	}
}

// Init initializes the TUI
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, m.autoAuth())
}

// autoAuth runs the one-shot startup authentication attempt.
func (m Model) autoAuth() tea.Cmd {
	ctl := m.authCtl
	return func() tea.Msg {
		ctl.MaybeAutoAuthenticate(context.Background())
		return authResultMsg{err: ctl.LastError()}
	}
}

// selectAuthMethod runs one user-initiated attempt.
func (m Model) selectAuthMethod(method string) tea.Cmd {
	ctl := m.authCtl
	return func() tea.Msg {
		err := ctl.SelectMethod(context.Background(), method)
		return authResultMsg{err: err}
	}
}

func (m *Model) sendMessage(content string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelStream = cancel
	session := m.session
	return func() tea.Msg {
		events, err := session.SendMessageStream(ctx, content)
		if err != nil {
			return streamErrMsg{err: err}
		}
		return streamEventChanMsg{events: events}
	}
}

// readNextEvent reads the next event from the stream.
func readNextEvent(events <-chan provider.StreamEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		switch event.Kind {
		case provider.EventContent:
			return streamChunkMsg{text: event.Text}
		case provider.EventDone:
			return streamDoneMsg{text: event.Text, usage: event.Usage}
		default:
			return streamErrMsg{err: event.Err}
		}
	}
}

// countTokens refreshes the prompt-size indicator.
func (m Model) countTokens() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		count, err := session.CountTokens(context.Background())
		if err != nil {
			return tokenCountMsg{}
		}
		return tokenCountMsg{count: count}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showAuth {
			return m.updateAuthDialog(msg)
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c":
			return m, m.quit()

		case "ctrl+a":
			return m.openAuthDialog()

		case "ctrl+h":
			m.showHelp = !m.showHelp
			return m, nil

		case "ctrl+l":
			m.messages.Clear()
			return m, nil

		case "esc":
			if m.thinking && m.cancelStream != nil {
				// Abort the in-flight turn; the stream's terminal
				// event unwinds the rest.
				m.cancelStream()
				return m, nil
			}
			if m.suggestions.IsVisible() {
				m.suggestions.Hide()
			}
			return m, nil

		case "tab":
			if m.suggestions.IsVisible() {
				if selected := m.suggestions.GetSelected(); selected != "" {
					m.editor.SetValue(selected)
					m.suggestions.Hide()
				}
				return m, nil
			}

		case "up":
			if m.suggestions.IsVisible() {
				m.suggestions.MoveUp()
				return m, nil
			}

		case "down":
			if m.suggestions.IsVisible() {
				m.suggestions.MoveDown()
				return m, nil
			}

		case "enter":
			if m.suggestions.IsVisible() {
				if selected := m.suggestions.GetSelected(); selected != "" {
					m.editor.Reset()
					m.suggestions.Hide()
					return m.handleCommand(selected)
				}
			}

			if !m.thinking && strings.TrimSpace(m.editor.Value()) != "" {
				userMsg := strings.TrimSpace(m.editor.Value())
				m.editor.Reset()
				m.suggestions.Hide()

				if strings.HasPrefix(userMsg, "/") {
					return m.handleCommand(userMsg)
				}

				m.messages.AddMessage(components.Message{
					Role:    "user",
					Content: userMsg,
				})
				m.pendingUser = userMsg
				m.thinking = true
				m.status.SetThinking(true)
				return m, tea.Batch(m.spinner.Tick, m.sendMessage(userMsg))
			}

		case "pgup", "pgdown":
			vp := m.messages.GetViewport()
			var cmd tea.Cmd
			*vp, cmd = vp.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.frame = layout.Frame{Width: msg.Width, Height: msg.Height}

		if !m.ready {
			m.messages = components.NewMessages(msg.Width, m.frame.MessagesHeight())
			m.messages.SetWelcome("parley")
			m.messages.SetMessages(historyMessages(m.session.History()))
			m.editor = components.NewEditor(msg.Width, layout.EditorHeight)
			m.editor.Reset()
			m.ready = true
		} else {
			m.messages.SetSize(msg.Width, m.frame.MessagesHeight())
			m.editor.SetSize(msg.Width, layout.EditorHeight)
		}

		m.header.SetWidth(msg.Width)
		m.status.SetWidth(msg.Width)

	case spinner.TickMsg:
		if m.thinking {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case streamEventChanMsg:
		m.eventChan = msg.events
		m.streamingContent = ""
		cmds = append(cmds, readNextEvent(m.eventChan))

	case streamChunkMsg:
		m.streamingContent += msg.text
		m.messages.UpdateStreaming(m.streamingContent)
		if m.eventChan != nil {
			cmds = append(cmds, readNextEvent(m.eventChan))
		}

	case streamDoneMsg:
		m.finishStream()
		m.messages.AddMessage(components.Message{
			Role:    "model",
			Content: msg.text,
		})
		cmds = append(cmds, m.afterTurn(m.pendingUser, msg.text)...)
		m.pendingUser = ""

	case streamErrMsg:
		m.finishStream()
		m.pendingUser = ""
		if msg.err != nil {
			m.messages.AddMessage(components.Message{
				Role:    "error",
				Content: msg.err.Error(),
			})
			slog.Error("turn failed", "error", msg.err)

			// A rejected credential mid-conversation reopens the method
			// picker with the failure attached.
			var authErr *provider.AuthError
			if errors.As(msg.err, &authErr) {
				if err := m.authCtl.OpenDialog(); err == nil {
					m.showAuth = true
					m.authDialog.SetError(msg.err.Error())
					m.status.SetAuthState("not signed in")
				}
			}
		}

	case streamClosedMsg:
		// Stream ended; terminal event already handled.
		m.eventChan = nil

	case authResultMsg:
		m.authDialog.SetBusy(false)
		switch m.authCtl.State() {
		case auth.StateAuthenticated:
			m.showAuth = false
			m.authDialog.SetError("")
			m.status.SetAuthState("")
		case auth.StateAutoAuthFailed, auth.StateDialogOpen:
			m.showAuth = true
			if msg.err != nil {
				m.authDialog.SetError(msg.err.Error())
			}
			m.status.SetAuthState("not signed in")
		}

	case tokenCountMsg:
		m.status.SetTokenCount(msg.count)
	}

	// Update editor if not thinking - only pass key messages
	if !m.thinking && !m.showAuth && m.editor != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			var cmd tea.Cmd
			m.editor, cmd = m.editor.Update(msg)
			cmds = append(cmds, cmd)

			m.suggestions.Filter(m.editor.Value())
		}
	}

	// Update messages viewport for scrolling
	if m.messages != nil {
		vp := m.messages.GetViewport()
		var cmd tea.Cmd
		*vp, cmd = vp.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// finishStream clears the streaming state after a terminal event.
func (m *Model) finishStream() {
	m.thinking = false
	m.status.SetThinking(false)
	m.eventChan = nil
	m.cancelStream = nil
	m.streamingContent = ""
	m.messages.ClearStreaming()
}

// afterTurn runs the post-commit work: live share, autosave, token count.
func (m *Model) afterTurn(userText, modelText string) []tea.Cmd {
	var cmds []tea.Cmd

	if m.caster != nil {
		caster, modelName := m.caster, m.modelName
		cmds = append(cmds, func() tea.Msg {
			if err := caster.Publish(share.EventUserTurn, userText, ""); err != nil {
				slog.Error("share publish failed", "error", err)
				return nil
			}
			if err := caster.Publish(share.EventModelTurn, modelText, modelName); err != nil {
				slog.Error("share publish failed", "error", err)
			}
			return nil
		})
	}

	if m.transcriptID != "" {
		cmds = append(cmds, m.saveTranscript())
	}

	cmds = append(cmds, m.countTokens())
	return cmds
}

// saveTranscript persists the current history under the transcript id.
func (m *Model) saveTranscript() tea.Cmd {
	t := &history.Transcript{
		ID:       m.transcriptID,
		Provider: m.providerName,
		Model:    m.modelName,
		Turns:    m.session.History(),
	}
	store := m.store
	return func() tea.Msg {
		if err := store.Save(t); err != nil {
			slog.Error("autosave failed", "error", err)
		}
		return nil
	}
}

// quit closes the broadcaster before exiting.
func (m *Model) quit() tea.Cmd {
	caster := m.caster
	return func() tea.Msg {
		if caster != nil {
			caster.Close()
		}
		return tea.Quit()
	}
}

// openAuthDialog shows the method picker unless an attempt is running.
func (m Model) openAuthDialog() (tea.Model, tea.Cmd) {
	if err := m.authCtl.OpenDialog(); err != nil {
		m.messages.AddMessage(components.Message{Role: "error", Content: err.Error()})
		return m, nil
	}
	m.showAuth = true
	return m, nil
}

// updateAuthDialog routes keys while the auth modal is up.
func (m Model) updateAuthDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, m.quit()

	case "esc":
		if m.authDialog.IsBusy() {
			m.authCtl.CancelAuthentication()
			return m, nil
		}
		m.authCtl.CloseDialog()
		m.showAuth = false
		m.authDialog.SetError("")
		return m, nil

	case "up":
		if !m.authDialog.IsBusy() {
			m.authDialog.MoveUp()
		}
		return m, nil

	case "down":
		if !m.authDialog.IsBusy() {
			m.authDialog.MoveDown()
		}
		return m, nil

	case "enter":
		if m.authDialog.IsBusy() {
			return m, nil
		}
		m.authDialog.SetBusy(true)
		m.authDialog.SetError("")
		return m, m.selectAuthMethod(m.authDialog.Selected())
	}
	return m, nil
}

// historyMessages converts committed turns into display messages.
func historyMessages(turns []message.Turn) []components.Message {
	var msgs []components.Message
	for _, t := range turns {
		role := "user"
		switch t.Role {
		case message.RoleModel:
			role = "model"
		case message.RoleSystem:
			role = "system"
		}
		msgs = append(msgs, components.Message{Role: role, Content: t.Text()})
	}
	return msgs
}

// handleCommand processes slash commands
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "/help":
		m.showHelp = true
		return m, nil

	case "/clear":
		m.messages.Clear()
		return m, nil

	case "/reset":
		m.messages.Clear()
		m.session.Clear()
		m.status.SetTokenCount(0)
		m.messages.AddMessage(components.Message{
			Role:    "system",
			Content: "Conversation reset.",
		})
		return m, nil

	case "/auth":
		return m.openAuthDialog()

	case "/model":
		if len(parts) < 2 {
			m.messages.AddMessage(components.Message{
				Role:    "system",
				Content: "Current model: " + m.modelName + "\nUsage: /model <name>",
			})
			return m, nil
		}
		m.modelName = parts[1]
		m.session.SetModel(m.modelName)
		m.status.SetModel(m.modelName)
		m.header.SetBackend(m.providerName, m.modelName)
		m.messages.AddMessage(components.Message{
			Role:    "system",
			Content: "Switched to model " + m.modelName + ".",
		})
		return m, nil

	case "/provider":
		if len(parts) < 2 {
			m.messages.AddMessage(components.Message{
				Role:    "system",
				Content: "Current provider: " + m.providerName + "\nUsage: /provider <gemini|deepseek|openai>",
			})
			return m, nil
		}
		return m.switchProvider(parts[1])

	case "/system":
		prompt := strings.Join(parts[1:], " ")
		m.session.SetSystemPrompt(prompt)
		note := "System prompt cleared."
		if prompt != "" {
			note = "System prompt updated; applies from the next message."
		}
		m.messages.AddMessage(components.Message{Role: "system", Content: note})
		return m, nil

	case "/save":
		if m.transcriptID == "" {
			m.transcriptID = m.session.ID()
		}
		m.messages.AddMessage(components.Message{
			Role:    "system",
			Content: "Saved. Resume later with: parley --resume " + m.transcriptID,
		})
		return m, m.saveTranscript()

	case "/sessions":
		list, err := m.store.List()
		if err != nil {
			m.messages.AddMessage(components.Message{Role: "error", Content: err.Error()})
			return m, nil
		}
		if len(list) == 0 {
			m.messages.AddMessage(components.Message{Role: "system", Content: "No saved conversations."})
			return m, nil
		}
		var sb strings.Builder
		sb.WriteString("Saved conversations:\n")
		for _, t := range list {
			sb.WriteString(fmt.Sprintf("  %s  %s  (%s)\n", t.ID, t.Summary, t.UpdatedAt.Format("2006-01-02 15:04")))
		}
		m.messages.AddMessage(components.Message{Role: "system", Content: sb.String()})
		return m, nil

	case "/tokens":
		return m, m.countTokens()

	case "/quit", "/exit", "/q":
		return m, m.quit()

	case "/config":
		return m.handleConfigCommand(parts)

	default:
		m.messages.AddMessage(components.Message{
			Role:    "error",
			Content: "Unknown command: " + cmd + "\nType /help for available commands.",
		})
		return m, nil
	}
}

// switchProvider rebuilds the backend, keeping the conversation history.
func (m Model) switchProvider(id string) (tea.Model, tea.Cmd) {
	key, source := config.GetAPIKey(id)
	gen, err := provider.New(provider.Config{
		Provider:  id,
		APIKey:    key,
		KeySource: source,
	})
	if err != nil {
		m.messages.AddMessage(components.Message{Role: "error", Content: err.Error()})
		return m, nil
	}

	model := config.Get().DefaultModel
	if model == "" {
		model = config.DefaultModelFor(id)
	}

	req := m.session.RequestConfig()
	req.Model = model
	m.session = chat.NewSession(gen, req, chat.WithHistory(m.session.History()))

	m.providerName = id
	m.modelName = model
	m.status.SetModel(model)
	m.header.SetBackend(id, model)
	m.messages.AddMessage(components.Message{
		Role:    "system",
		Content: fmt.Sprintf("Switched to %s (%s). History carries over.", id, model),
	})

	if key == "" {
		m.messages.AddMessage(components.Message{
			Role:    "system",
			Content: "No API key found for " + id + "; press Ctrl+A to sign in.",
		})
	}
	return m, nil
}

// handleConfigCommand implements /config show, set and delete.
func (m Model) handleConfigCommand(parts []string) (tea.Model, tea.Cmd) {
	if len(parts) == 1 {
		keys := config.ListKeys()
		var sb strings.Builder
		sb.WriteString("Configuration:\n")
		sb.WriteString(fmt.Sprintf("  Config file: %s\n\n", config.ConfigPath()))

		if len(keys) == 0 {
			sb.WriteString("  No keys configured.\n")
		} else {
			for k, v := range keys {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", k, v))
			}
		}
		sb.WriteString("\nUsage:\n")
		sb.WriteString("  /config set <key> <value>  - Set a config value\n")
		sb.WriteString("  /config delete <key>       - Delete a config value\n")
		sb.WriteString("\nKeys: gemini, deepseek, openai, provider, model, system_prompt, nats_url")

		m.messages.AddMessage(components.Message{Role: "system", Content: sb.String()})
		return m, nil
	}

	switch strings.ToLower(parts[1]) {
	case "set":
		if len(parts) < 4 {
			m.messages.AddMessage(components.Message{
				Role:    "error",
				Content: "Usage: /config set <key> <value>",
			})
			return m, nil
		}
		key := parts[2]
		value := strings.Join(parts[3:], " ")
		if err := config.Set(key, value); err != nil {
			m.messages.AddMessage(components.Message{
				Role:    "error",
				Content: fmt.Sprintf("Failed to set config: %v", err),
			})
		} else {
			m.messages.AddMessage(components.Message{
				Role:    "system",
				Content: fmt.Sprintf("Set %s successfully.", key),
			})
		}
		return m, nil

	case "delete", "remove", "unset":
		if len(parts) < 3 {
			m.messages.AddMessage(components.Message{
				Role:    "error",
				Content: "Usage: /config delete <key>",
			})
			return m, nil
		}
		if err := config.Delete(parts[2]); err != nil {
			m.messages.AddMessage(components.Message{
				Role:    "error",
				Content: fmt.Sprintf("Failed to delete config: %v", err),
			})
		} else {
			m.messages.AddMessage(components.Message{
				Role:    "system",
				Content: fmt.Sprintf("Deleted %s.", parts[2]),
			})
		}
		return m, nil

	default:
		m.messages.AddMessage(components.Message{
			Role:    "error",
			Content: "Unknown config subcommand: " + parts[1] + "\nUse: set, delete",
		})
		return m, nil
	}
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	t := theme.Current

	messagesView := m.messages.View()
	if m.thinking && m.streamingContent == "" {
		thinkingStyle := lipgloss.NewStyle().Foreground(t.Primary)
		messagesView += "\n" + thinkingStyle.Render(m.spinner.View()+" Thinking...")
	}

	suggestions := ""
	if m.suggestions.IsVisible() {
		m.suggestions.SetWidth(m.frame.Width)
		suggestions = m.suggestions.View()
	}

	view := m.frame.Stack(
		m.header.View(),
		messagesView,
		suggestions,
		m.editor.View(),
		m.status.View(),
	)

	if m.showAuth {
		view = components.PlaceOverlay(m.authDialog.View(), view, m.frame.Width, m.frame.Height)
	} else if m.showHelp {
		view = components.PlaceOverlay(m.help.View(), view, m.frame.Width, m.frame.Height)
	}

	return lipgloss.NewStyle().
		Background(t.Background).
		Width(m.frame.Width).
		Height(m.frame.Height).
		Render(view)
}
