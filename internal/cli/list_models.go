/*
PURPOSE:
  Defines the 'list-models' subcommand.
  Helps check the model directory before a full run.

REQUIREMENTS:
  User-specified:
  - List available models.

  Implementation-discovered:
  - Useful validation step before full run.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Catalog.List()

ERROR HANDLING:
  - Returns the error if model_dir cannot be read.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  foodallergens list-models --model-dir ./models

RELATED FILES:
  - internal/engine/catalog.go
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IsseiKhai277/foodallergens/internal/engine"
)

var modelDirOverride string

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List the .gguf models in the model directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if modelDirOverride != "" {
			cfg.ModelDir = modelDirOverride
		}

		models, err := engine.Catalog{Dir: cfg.ModelDir}.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(models) == 0 {
			fmt.Fprintf(out, "No models in %s\n", cfg.ModelDir)
			return nil
		}
		for _, m := range models {
			fmt.Fprintf(out, "- %s (%s)\n", m.Name, humanSize(m.Size))
		}
		return nil
	},
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(listModelsCmd)
	listModelsCmd.Flags().StringVar(&modelDirOverride, "model-dir", "", "Model directory (overrides model_dir)")
}
