package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/IsseiKhai277/foodallergens/internal/engine"
	"github.com/IsseiKhai277/foodallergens/internal/output"
)

var querySlurp bool

var queryCmd = &cobra.Command{
	Use:   "query <jq-expression> [predictions.jsonl]",
	Short: "Run a jq expression over exported predictions",
	Long: `Runs a jq expression (gojq) over the NDJSON predictions export.
The helpers from 'functions list' are always in scope.
Without --slurp the expression runs once per prediction.`,
	Example: `  foodallergens query 'misses | {model, id: .item.id, missed: .safety.missed}'
  foodallergens query -s 'model_summary[]' ./out/predictions.jsonl`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 2 {
			path = args[1]
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path = filepath.Join(cfg.OutputDir, engine.JSONFile)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open predictions: %w", err)
		}
		defer f.Close()

		preds, err := output.ReadPredictions(f)
		if err != nil {
			return err
		}
		return output.Query(args[0], preds, querySlurp, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVarP(&querySlurp, "slurp", "s", false, "Run the expression once over the array of all predictions")
}
