package session

import (
	"strings"
	"testing"

	"relaychat/internal/relay"
	"relaychat/internal/testutil"
)

func transcriptSession() *Session {
	return &Session{
		Model: "gpt-b",
		History: []relay.Message{
			relay.NewUserMessage("What is Go?"),
			relay.NewAssistantMessage("A programming language."),
		},
	}
}

func TestExportToMarkdown(t *testing.T) {
	out := ExportToMarkdown(transcriptSession())

	testutil.AssertContains(t, out, "# Chat transcript")
	testutil.AssertContains(t, out, "| **Model** | gpt-b |")
	testutil.AssertContains(t, out, "| **Messages** | 2 |")
	testutil.AssertContains(t, out, "### You\n\nWhat is Go?")
	testutil.AssertContains(t, out, "### Assistant\n\nA programming language.")
}

func TestExportToMarkdownEscapesTableCells(t *testing.T) {
	sess := &Session{Model: "weird|model\nname"}
	out := ExportToMarkdown(sess)

	testutil.AssertContains(t, out, "weird\\|model name")
}

func TestExportToYAML(t *testing.T) {
	out, err := ExportToYAML(transcriptSession())
	if err != nil {
		t.Fatalf("ExportToYAML: %v", err)
	}

	text := string(out)
	testutil.AssertContains(t, text, "model: gpt-b")
	testutil.AssertContains(t, text, "role: user")
	testutil.AssertContains(t, text, "What is Go?")
	if strings.Count(text, "role:") != 2 {
		t.Errorf("expected two messages in YAML output:\n%s", text)
	}
}
