package session

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"relaychat/internal/relay"
)

// ExportToMarkdown renders a session transcript as markdown.
func ExportToMarkdown(sess *Session) string {
	var b strings.Builder

	b.WriteString("# Chat transcript\n\n")
	b.WriteString("| | |\n")
	b.WriteString("|---|---|\n")
	b.WriteString(fmt.Sprintf("| **Model** | %s |\n", escapeTableCell(sess.Model)))
	b.WriteString(fmt.Sprintf("| **Messages** | %d |\n", len(sess.History)))
	b.WriteString(fmt.Sprintf("| **Exported** | %s |\n", time.Now().UTC().Format("2006-01-02 15:04 UTC")))
	b.WriteString("\n")

	for _, msg := range sess.History {
		switch msg.Role {
		case relay.RoleUser:
			b.WriteString("### You\n\n")
		case relay.RoleAssistant:
			b.WriteString("### Assistant\n\n")
		default:
			b.WriteString(fmt.Sprintf("### %s\n\n", msg.Role))
		}
		b.WriteString(msg.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}

type yamlExport struct {
	Model    string          `yaml:"model"`
	Messages []relay.Message `yaml:"messages"`
}

// ExportToYAML renders a session transcript as YAML.
func ExportToYAML(sess *Session) ([]byte, error) {
	doc := yamlExport{Model: sess.Model, Messages: sess.History}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript: %w", err)
	}
	return out, nil
}

// escapeTableCell escapes characters that break markdown tables.
func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
