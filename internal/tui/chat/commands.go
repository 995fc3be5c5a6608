package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"relaychat/internal/session"
)

// Command represents a slash command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// AllCommands returns all available slash commands
func AllCommands() []Command {
	return []Command{
		{
			Name:        "help",
			Aliases:     []string{"h", "?"},
			Description: "Show help and available commands",
			Usage:       "/help",
		},
		{
			Name:        "model",
			Aliases:     []string{"m"},
			Description: "Show or select the model",
			Usage:       "/model [name]",
		},
		{
			Name:        "models",
			Description: "List models offered by the relay",
			Usage:       "/models",
		},
		{
			Name:        "clear",
			Aliases:     []string{"c", "reset"},
			Description: "Reset the session and clear the stored snapshot",
			Usage:       "/clear",
		},
		{
			Name:        "export",
			Description: "Export the transcript as markdown or YAML",
			Usage:       "/export [path]",
		},
		{
			Name:        "quit",
			Aliases:     []string{"q", "exit"},
			Description: "Exit chat",
			Usage:       "/quit",
		},
	}
}

// resolveCommand matches name against commands and aliases.
func resolveCommand(name string) (Command, bool) {
	for _, cmd := range AllCommands() {
		if cmd.Name == name {
			return cmd, true
		}
		for _, alias := range cmd.Aliases {
			if alias == name {
				return cmd, true
			}
		}
	}
	return Command{}, false
}

// suggestCommand fuzzy-matches a mistyped command name to its closest
// candidate.
func suggestCommand(name string) string {
	names := make([]string, 0)
	for _, cmd := range AllCommands() {
		names = append(names, cmd.Name)
	}
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

// executeCommand dispatches a parsed slash command.
func (m Model) executeCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(fields) == 0 {
		return m, nil
	}
	name, args := fields[0], fields[1:]

	cmd, ok := resolveCommand(name)
	if !ok {
		notice := fmt.Sprintf("Unknown command /%s", name)
		if suggestion := suggestCommand(name); suggestion != "" {
			notice += fmt.Sprintf(" (did you mean /%s?)", suggestion)
		}
		m.addSystem(notice)
		return m, nil
	}

	switch cmd.Name {
	case "help":
		return m.cmdHelp()
	case "model":
		return m.cmdModel(args)
	case "models":
		return m.cmdModels()
	case "clear":
		return m.cmdClear()
	case "export":
		return m.cmdExport(args)
	case "quit":
		m.ctrl.Shutdown()
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) cmdHelp() (tea.Model, tea.Cmd) {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, cmd := range AllCommands() {
		b.WriteString(fmt.Sprintf("  %-18s %s\n", cmd.Usage, cmd.Description))
	}
	b.WriteString("Enter sends the message; input is locked while a response is in flight.")
	m.addSystem(b.String())
	return m, nil
}

func (m Model) cmdModel(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		current := m.ctrl.Session().Model
		if current == "" {
			m.addSystem("No model selected. Use /model <name>.")
		} else {
			m.addSystem("Current model: " + current)
		}
		return m, nil
	}

	name := args[0]
	if len(m.models) > 0 && !contains(m.models, name) {
		m.addSystem(fmt.Sprintf("Unknown model %q. Try /models.", name))
		return m, nil
	}

	if err := m.ctrl.SelectModel(m.ctx, name); err != nil {
		m.addError(err.Error())
		return m, nil
	}
	m.addSystem("Model set to " + name)
	return m, nil
}

func (m Model) cmdModels() (tea.Model, tea.Cmd) {
	if len(m.models) == 0 {
		m.addSystem("Model list not loaded yet.")
		return m, m.fetchModels()
	}
	m.addSystem("Available models: " + strings.Join(m.models, ", "))
	return m, nil
}

func (m Model) cmdClear() (tea.Model, tea.Cmd) {
	if m.ctrl.Busy() {
		return m, nil
	}
	if err := m.ctrl.Reset(m.ctx); err != nil {
		m.addError(err.Error())
		return m, nil
	}
	m.entries = nil
	m.partial = ""
	m.addSystem("Conversation cleared.")
	return m, nil
}

func (m Model) cmdExport(args []string) (tea.Model, tea.Cmd) {
	path := "relaychat-transcript.md"
	if len(args) > 0 {
		path = args[0]
	}

	sess := m.ctrl.Session()
	var payload []byte
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		out, err := session.ExportToYAML(sess)
		if err != nil {
			m.addError(err.Error())
			return m, nil
		}
		payload = out
	default:
		payload = []byte(session.ExportToMarkdown(sess))
	}

	if err := os.WriteFile(path, payload, 0644); err != nil {
		m.addError(err.Error())
		return m, nil
	}
	m.addSystem("Exported to " + path)
	return m, nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
