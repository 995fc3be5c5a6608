package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"relaychat/internal/relay"
	"relaychat/internal/signal"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models offered by the relay",
	Long: `List the model names the relay offers.

Examples:
  relaychat models
  relaychat models --json`,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext()
	defer stop()

	cfg, err := loadConfigChecked()
	if err != nil {
		return err
	}

	client := relay.NewClient(cfg.BaseURL, relay.Options{
		Token:        cfg.Token,
		ModelsMethod: cfg.ModelsMethod,
	})

	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	if modelsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	for _, model := range models {
		fmt.Println(model)
	}
	return nil
}
