package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"relaychat/internal/session"
	"relaychat/internal/signal"
)

var sessionExportOut string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or manage the saved session snapshot",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved session snapshot",
	RunE:  runSessionShow,
}

var sessionExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the saved transcript (markdown, or YAML by extension)",
	RunE:  runSessionExport,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved session snapshot",
	RunE:  runSessionClear,
}

func init() {
	sessionExportCmd.Flags().StringVarP(&sessionExportOut, "output", "o", "", "Write to file instead of stdout")
	sessionCmd.AddCommand(sessionShowCmd, sessionExportCmd, sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}

func openStore() (*session.Store, error) {
	dbPath, err := session.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	store, err := session.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return store, nil
}

func loadSavedSession(ctx context.Context) (*session.Session, *session.Store, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	sess, err := store.Load(ctx)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("load session snapshot: %w", err)
	}
	return sess, store, nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext()
	defer stop()

	sess, store, err := loadSavedSession(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if sess == nil {
		fmt.Println("No saved session.")
		return nil
	}

	fmt.Printf("Model:    %s\n", sess.Model)
	fmt.Printf("Session:  %s\n", sess.SessionID)
	fmt.Printf("Messages: %d (at most %d are kept)\n", len(sess.History), session.MaxStoredMessages)
	for _, msg := range sess.History {
		fmt.Printf("  [%s] %s\n", msg.Role, firstLine(msg.Content))
	}
	return nil
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext()
	defer stop()

	sess, store, err := loadSavedSession(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if sess == nil {
		return fmt.Errorf("no saved session to export")
	}

	var payload []byte
	switch filepath.Ext(sessionExportOut) {
	case ".yaml", ".yml":
		payload, err = session.ExportToYAML(sess)
		if err != nil {
			return err
		}
	default:
		payload = []byte(session.ExportToMarkdown(sess))
	}

	if sessionExportOut == "" {
		_, err = os.Stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(sessionExportOut, payload, 0644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Println("Exported to " + sessionExportOut)
	return nil
}

func runSessionClear(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext()
	defer stop()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(ctx); err != nil {
		return err
	}
	fmt.Println("Saved session cleared.")
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
		if i > 72 {
			return s[:i] + "..."
		}
	}
	return s
}
