package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relaychat",
	Short: "Terminal client for a relay chat service",
	Long: `relaychat talks to a relay chat-completion service and manages one
conversational session at a time, resuming it across restarts.

Depending on the deployment the relay either pushes incremental response
fragments or is polled until the response stabilizes; set "mode" in the
config file accordingly.

Examples:
  relaychat chat                        # interactive TUI session
  relaychat ask "what is a goroutine"   # one-shot question
  relaychat models                      # list available models
  relaychat session show                # inspect the saved session`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
