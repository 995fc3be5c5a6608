package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"relaychat/internal/config"
	"relaychat/internal/controller"
	"relaychat/internal/relay"
	"relaychat/internal/session"
	"relaychat/internal/signal"
	"relaychat/internal/tui/chat"
)

var chatModel string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive TUI chat session against the relay.

The previous session is restored from the local snapshot if one exists.

Keyboard shortcuts:
  Enter        - Send message
  Ctrl+C       - Quit

Slash commands:
  /help        - Show help
  /model       - Show or select the model
  /models      - List available models
  /clear       - Reset session and stored snapshot
  /export      - Export transcript
  /quit        - Exit chat`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Override the model for this session")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext()
	defer stop()

	cfg, err := loadConfigChecked()
	if err != nil {
		return err
	}

	dbPath, err := session.DefaultDBPath()
	if err != nil {
		return err
	}
	store, err := session.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	sess, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session snapshot: %w", err)
	}
	if sess == nil {
		sess = &session.Session{}
	}

	// Model preference: flag, restored snapshot, config, last selection.
	switch {
	case chatModel != "":
		sess.Model = chatModel
	case sess.Model != "":
	case cfg.Model != "":
		sess.Model = cfg.Model
	default:
		if last, err := store.LastModel(ctx); err == nil {
			sess.Model = last
		}
	}

	client := relay.NewClient(cfg.BaseURL, relay.Options{
		Token:        cfg.Token,
		ModelsMethod: cfg.ModelsMethod,
	})

	deltas := make(chan string, 8)
	ctrl := controller.New(client, store, sess, controller.Options{
		Mode:            controller.Mode(cfg.Mode),
		StreamTimeout:   cfg.StreamTimeout(),
		PollInterval:    cfg.PollInterval(),
		PollMaxAttempts: cfg.PollMaxAttempts,
		OnDelta: func(accumulated string) {
			// Drop rather than block: each delta carries the full
			// accumulated text, so the next one supersedes it.
			select {
			case deltas <- accumulated:
			default:
			}
		},
	})

	model := chat.New(ctx, ctrl, client, deltas)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run chat: %w", err)
	}

	ctrl.Shutdown()
	return nil
}

func loadConfigChecked() (*config.Config, error) {
	if config.NeedsSetup() {
		path, _ := config.GetConfigPath()
		return nil, fmt.Errorf("no configuration found; create %s or set RELAYCHAT_BASE_URL", path)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is not configured")
	}
	return cfg, nil
}
