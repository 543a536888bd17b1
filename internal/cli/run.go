/*
PURPOSE:
  Defines the 'run' subcommand.
  Evaluates one or more models against a data set of the food dataset.

REQUIREMENTS:
  User-specified:
  - Run the evaluation.
  - specific flags for overrides.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.
  - set 0 means every set, each written to its own set_NN sub directory so
    the per-set exports do not overwrite each other.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Runner.Run()
  - Uses: internal/config, internal/dataset, internal/store

ERROR HANDLING:
  - Returns error if config, dataset or store fail to load.
  - Per-item failures are recorded by the runner, never returned.
  - SIGINT/SIGTERM cancel the run between items.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Dataset -> Store -> Runner.Run.

USAGE:
  foodallergens run --models qwen2.5-1.5b.gguf --set 3

RELATED FILES:
  - internal/cli/root.go
  - internal/engine/runner.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IsseiKhai277/foodallergens/internal/config"
	"github.com/IsseiKhai277/foodallergens/internal/dataset"
	"github.com/IsseiKhai277/foodallergens/internal/engine"
	"github.com/IsseiKhai277/foodallergens/internal/model"
	"github.com/IsseiKhai277/foodallergens/internal/output"
	"github.com/IsseiKhai277/foodallergens/internal/store"
)

var (
	modelsOverride  []string
	outputOverride  string
	datasetOverride string
	setOverride     int
	setsOverride    int
	storeOverride   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate models against the allergen dataset",
	Long: `Runs every selected model over one data set of the dataset.
The process follows a strict protocol:
1. Dataset: Reads the XLSX/CSV dataset and picks the requested set.
2. Classification: Each item's ingredients are wrapped in the model's chat
   template and classified with a fresh session.
3. Scoring: Predictions are scored for quality and safety against the mapped
   allergens, persisted to the store and appended to CSV/JSON.

A workbook with one sheet per model plus a summary sheet is written at the end,
and a summary table is printed to stdout.`,
	Example: `  # Run with defaults (uses foodallergens.yaml)
  foodallergens run

  # Run two models on data set 3
  foodallergens run --models qwen2.5-1.5b.gguf,phi-3.5-mini.gguf --set 3

  # Run every data set into ./results
  foodallergens run --set 0 -o ./results`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// 2. Overrides
		applyRunOverrides(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		// 3. Inputs
		items, err := dataset.Read(cfg.Dataset)
		if err != nil {
			return fmt.Errorf("failed to read dataset %s: %w", cfg.Dataset, err)
		}
		models, err := engine.Catalog{Dir: cfg.ModelDir}.Select(cfg.Models)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.StoreBackend, cfg.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open %s store at %s: %w", cfg.StoreBackend, cfg.StorePath, err)
		}
		defer st.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// 4. Execution
		runner := engine.NewRunner(newDriver(cfg), st)
		runner.Report = cmd.OutOrStdout()

		plans, err := buildPlans(cfg, models, items)
		if err != nil {
			return err
		}
		for _, plan := range plans {
			if _, err := runner.Run(ctx, plan); err != nil {
				return err
			}
		}
		return nil
	},
}

func applyRunOverrides(cmd *cobra.Command, cfg *config.Config) {
	if len(modelsOverride) > 0 {
		cfg.Models = modelsOverride
	}
	if outputOverride != "" {
		cfg.OutputDir = outputOverride
	}
	if datasetOverride != "" {
		cfg.Dataset = datasetOverride
	}
	if cmd.Flags().Changed("sets") {
		cfg.Sets = setsOverride
	}
	if cmd.Flags().Changed("set") {
		cfg.SetIndex = setOverride
	}
	if storeOverride != "" {
		cfg.StoreBackend = storeOverride
	}
}

// buildPlans turns the configured set selection into runner plans.
func buildPlans(cfg *config.Config, models []engine.ModelInfo, items []model.FoodItem) ([]engine.Plan, error) {
	if cfg.SetIndex > 0 {
		set, err := dataset.Set(items, cfg.Sets, cfg.SetIndex)
		if err != nil {
			return nil, err
		}
		return []engine.Plan{{Models: models, Items: set, DataSet: cfg.SetIndex, OutputDir: cfg.OutputDir}}, nil
	}

	sets := dataset.Split(items, cfg.Sets)
	if len(sets) == 0 {
		return nil, fmt.Errorf("dataset %s has no items", cfg.Dataset)
	}
	plans := make([]engine.Plan, 0, len(sets))
	for i, set := range sets {
		plans = append(plans, engine.Plan{
			Models:    models,
			Items:     set,
			DataSet:   i + 1,
			OutputDir: filepath.Join(cfg.OutputDir, fmt.Sprintf("set_%02d", i+1)),
		})
	}
	output.Logger.Info("Running every data set", "sets", len(plans), "items", len(items))
	return plans, nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&modelsOverride, "models", nil, "Comma-separated list of model files to run (default: every .gguf in model_dir)")
	runCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results (CSV/JSON/XLSX)")
	runCmd.Flags().StringVarP(&datasetOverride, "dataset", "d", "", "Dataset file (.xlsx or .csv)")
	runCmd.Flags().IntVar(&setOverride, "set", 0, "1-based data set to evaluate; 0 runs every set")
	runCmd.Flags().IntVar(&setsOverride, "sets", dataset.DefaultSets, "Number of sets the dataset is divided into")
	runCmd.Flags().StringVar(&storeOverride, "store", "", "Prediction store backend: sqlite or badger")
}
