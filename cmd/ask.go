package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"relaychat/internal/controller"
	"relaychat/internal/relay"
	"relaychat/internal/session"
	"relaychat/internal/signal"
	"relaychat/internal/ui"
)

var (
	askModel string
	askText  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-shot question and print the answer",
	Long: `Ask the relay a single question in an ephemeral session: nothing is
persisted and the remote session is released afterwards.

Examples:
  relaychat ask "What is the capital of France?"
  relaychat ask --model gpt-b "How do I reverse a string in Go?"
  relaychat ask "List 5 programming languages" --text`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askModel, "model", "", "Model to use (defaults to the configured model)")
	askCmd.Flags().BoolVarP(&askText, "text", "t", false, "Output plain text instead of rendered markdown")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext()
	defer stop()

	cfg, err := loadConfigChecked()
	if err != nil {
		return err
	}

	model := askModel
	if model == "" {
		model = cfg.Model
	}
	if model == "" {
		return fmt.Errorf("no model selected; set model in the config or pass --model")
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	renderMarkdown := !askText && isTTY

	client := relay.NewClient(cfg.BaseURL, relay.Options{
		Token:        cfg.Token,
		ModelsMethod: cfg.ModelsMethod,
	})

	// Stream plain text as it arrives; each delta carries the accumulated
	// text, so only the new suffix is printed.
	var printed int
	onDelta := func(accumulated string) {
		if renderMarkdown {
			return
		}
		if len(accumulated) > printed {
			fmt.Print(accumulated[printed:])
			printed = len(accumulated)
		}
	}

	ctrl := controller.New(client, nil, &session.Session{Model: model}, controller.Options{
		Mode:            controller.Mode(cfg.Mode),
		StreamTimeout:   cfg.StreamTimeout(),
		PollInterval:    cfg.PollInterval(),
		PollMaxAttempts: cfg.PollMaxAttempts,
		OnDelta:         onDelta,
	})
	defer ctrl.Shutdown()

	reply, err := ctrl.Send(ctx, question)
	if err != nil {
		return err
	}

	if renderMarkdown {
		width := 80
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
		fmt.Println(ui.RenderMarkdown(reply, width))
		return nil
	}

	if printed < len(reply) {
		fmt.Print(reply[printed:])
	}
	fmt.Println()
	return nil
}
