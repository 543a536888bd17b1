/*
PURPOSE:
  Defines the 'report' subcommand: the summary tables for predictions that
  are already stored, without re-running any model.

REQUIREMENTS:
  User-specified:
  - Summarize stored predictions per model.
  - Clear the store when starting a fresh evaluation.

  Implementation-discovered:
  - Reading an NDJSON export (--from) lets a report be rebuilt on a machine
    that never had the store.

ARCHITECTURE INTEGRATION:
  - Uses: internal/store (ListGrouped, ListByModel, DeleteAll),
    internal/evaluate (SummarizeAll), internal/output (WriteReport)

ERROR HANDLING:
  - Store and file errors are returned.

USAGE:
  foodallergens report --model qwen2.5-1.5b.gguf
  foodallergens report --from ./out/predictions.jsonl
  foodallergens report --delete-all

RELATED FILES:
  - internal/output/report.go
*/

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IsseiKhai277/foodallergens/internal/config"
	"github.com/IsseiKhai277/foodallergens/internal/evaluate"
	"github.com/IsseiKhai277/foodallergens/internal/model"
	"github.com/IsseiKhai277/foodallergens/internal/output"
	"github.com/IsseiKhai277/foodallergens/internal/store"
)

var (
	reportModel     string
	reportFrom      string
	reportDeleteAll bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print quality, safety and efficiency tables for stored predictions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if storeOverride != "" {
			cfg.StoreBackend = storeOverride
		}

		if reportDeleteAll {
			return deleteAll(cmd, cfg)
		}

		preds, err := loadPredictions(cmd, cfg)
		if err != nil {
			return err
		}
		if reportModel != "" {
			preds = filterModel(preds, reportModel)
		}
		return output.WriteReport(cmd.OutOrStdout(), evaluate.SummarizeAll(preds))
	},
}

func loadPredictions(cmd *cobra.Command, cfg *config.Config) ([]model.Prediction, error) {
	if reportFrom != "" {
		f, err := os.Open(reportFrom)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return output.ReadPredictions(f)
	}

	st, err := store.Open(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if reportModel != "" {
		return st.ListByModel(cmd.Context(), reportModel)
	}
	grouped, err := st.ListGrouped(cmd.Context())
	if err != nil {
		return nil, err
	}
	var all []model.Prediction
	for _, ps := range grouped {
		all = append(all, ps...)
	}
	return all, nil
}

func filterModel(preds []model.Prediction, name string) []model.Prediction {
	var out []model.Prediction
	for _, p := range preds {
		if p.Model == name {
			out = append(out, p)
		}
	}
	return out
}

func deleteAll(cmd *cobra.Command, cfg *config.Config) error {
	st, err := store.Open(cfg.StoreBackend, cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.DeleteAll(cmd.Context())
	if err != nil {
		return err
	}
	output.Logger.Info("Deleted predictions", "count", n, "store", cfg.StorePath)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d predictions\n", n)
	return err
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportModel, "model", "m", "", "Only report this model")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Read predictions from an NDJSON export instead of the store")
	reportCmd.Flags().BoolVar(&reportDeleteAll, "delete-all", false, "Delete every stored prediction instead of reporting")
	reportCmd.Flags().StringVar(&storeOverride, "store", "", "Prediction store backend: sqlite or badger")
}
