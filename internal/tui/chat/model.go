// Package chat implements the interactive TUI for a relay session. The input
// surface is disabled while a turn is in flight; that disable/enable pair is
// the sole guard keeping observation runs serialized.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"relaychat/internal/controller"
	"relaychat/internal/relay"
	"relaychat/internal/ui"
)

const statusReady = "Ready"

// ModelLister fetches the relay's model names.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// entry is one rendered transcript item. A zero role marks a system notice;
// errorRole marks a failure notice, rendered in the error style.
type entry struct {
	role    relay.Role
	content string
}

const errorRole relay.Role = "error"

// Messages flowing through Update.
type (
	deltaMsg    string
	turnDoneMsg struct {
		reply string
		err   error
	}
	modelsMsg struct {
		models []string
		err    error
	}
)

// Model is the bubbletea model for the chat TUI.
type Model struct {
	ctx    context.Context
	ctrl   *controller.Controller
	lister ModelLister
	styles *ui.Styles

	textarea textarea.Model
	viewport viewport.Model
	spin     spinner.Model

	deltas  chan string
	models  []string
	entries []entry
	partial string
	status  string

	width  int
	height int
	ready  bool
}

// New builds the chat model around an existing controller. deltas must be the
// channel the controller's OnDelta callback feeds.
func New(ctx context.Context, ctrl *controller.Controller, lister ModelLister, deltas chan string) Model {
	ta := textarea.New()
	ta.Placeholder = "Send a message... (/help for commands)"
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		lister:   lister,
		styles:   ui.NewStyles(),
		textarea: ta,
		spin:     s,
		deltas:   deltas,
		status:   statusReady,
	}

	// A restored snapshot re-renders the transcript exactly as stored,
	// oldest first, and leaves the UI ready to send.
	for _, msg := range ctrl.Session().History {
		m.entries = append(m.entries, entry{role: msg.Role, content: msg.Content})
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick, waitForDelta(m.deltas), m.fetchModels())
}

// waitForDelta relays the controller's streaming callback into the TUI loop.
func waitForDelta(deltas <-chan string) tea.Cmd {
	return func() tea.Msg {
		return deltaMsg(<-deltas)
	}
}

func (m Model) fetchModels() tea.Cmd {
	if m.lister == nil {
		return nil
	}
	return func() tea.Msg {
		models, err := m.lister.ListModels(m.ctx)
		return modelsMsg{models: models, err: err}
	}
}

func (m Model) sendTurn(text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.ctrl.Send(m.ctx, text)
		return turnDoneMsg{reply: reply, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		chrome := m.textarea.Height() + 2 // status bar + spacing
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chrome)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chrome
		}
		m.textarea.SetWidth(msg.Width)
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.ctrl.Shutdown()
			return m, tea.Quit
		case "enter":
			return m.submit()
		}
		if m.ctrl.Busy() {
			// Input surface is disabled during a turn.
			return m, nil
		}
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case deltaMsg:
		m.partial = string(msg)
		m.refreshTranscript()
		return m, waitForDelta(m.deltas)

	case turnDoneMsg:
		return m.finishTurn(msg)

	case modelsMsg:
		if msg.err == nil {
			m.models = msg.models
			if m.ctrl.Session().Model == "" && len(m.models) > 0 {
				m.addSystem("Available models: " + strings.Join(m.models, ", ") + " - pick one with /model <name>")
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// submit handles enter: slash commands run immediately, anything else starts
// a turn. A send with no model selected, or while a turn is in flight, is
// dropped without touching history or the UI.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.textarea.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.textarea.Reset()
		return m.executeCommand(text)
	}

	if m.ctrl.Busy() || m.ctrl.Session().Model == "" {
		return m, nil
	}

	m.textarea.Reset()
	m.textarea.Blur()
	m.entries = append(m.entries, entry{role: relay.RoleUser, content: text})
	m.partial = ""
	m.status = "Thinking..."
	m.refreshTranscript()
	return m, tea.Batch(m.spin.Tick, m.sendTurn(text))
}

// finishTurn resolves the single in-flight turn: exactly one of the reply or
// a system error notice lands in the transcript, and input is re-enabled.
func (m Model) finishTurn(msg turnDoneMsg) (tea.Model, tea.Cmd) {
	m.partial = ""
	m.status = statusReady
	m.textarea.Focus()

	switch {
	case errors.Is(msg.err, controller.ErrNoModel), errors.Is(msg.err, controller.ErrBusy):
		// Precondition misses are dropped quietly.
	case msg.err != nil:
		m.addError(msg.err.Error())
	default:
		m.entries = append(m.entries, entry{role: relay.RoleAssistant, content: msg.reply})
	}

	m.refreshTranscript()
	return m, textarea.Blink
}

func (m *Model) addSystem(text string) {
	m.entries = append(m.entries, entry{content: text})
	m.refreshTranscript()
}

func (m *Model) addError(text string) {
	m.entries = append(m.entries, entry{role: errorRole, content: text})
	m.refreshTranscript()
}

func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript() string {
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(m.renderEntry(e))
		b.WriteString("\n")
	}
	if m.partial != "" {
		b.WriteString(m.styles.Assistant.Render("Assistant"))
		b.WriteString("\n")
		b.WriteString(ui.RenderMarkdown(m.partial, m.contentWidth()))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderEntry(e entry) string {
	switch e.role {
	case relay.RoleUser:
		return m.styles.User.Render("You") + "\n" + e.content + "\n"
	case relay.RoleAssistant:
		return m.styles.Assistant.Render("Assistant") + "\n" + ui.RenderMarkdown(e.content, m.contentWidth()) + "\n"
	case errorRole:
		return m.styles.Error.Render("Error: "+e.content) + "\n"
	default:
		return m.styles.System.Render(e.content) + "\n"
	}
}

func (m *Model) contentWidth() int {
	if m.width > 0 {
		return m.width
	}
	return 80
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return m.viewport.View() + "\n" + m.statusBar() + "\n" + m.textarea.View()
}

func (m Model) statusBar() string {
	sess := m.ctrl.Session()
	model := sess.Model
	if model == "" {
		model = "no model"
	}
	info := m.styles.Muted.Render(fmt.Sprintf("%s · %s", model, m.ctrl.Mode()))

	if m.ctrl.Busy() {
		return m.spin.View() + " " + m.styles.Muted.Render(m.status) + "  " + info
	}
	return m.styles.Status.Render("● "+m.status) + "  " + info
}
