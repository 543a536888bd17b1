/*
PURPOSE:
  Defines the 'classify' subcommand: one boundary call from the shell.

REQUIREMENTS:
  User-specified:
  - Classify a raw prompt, or an ingredient list wrapped in the model's
    chat template, with one model.
  - Print the encoded result string exactly as the driver returns it.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine (Catalog.Select, PromptFor, Driver.Classify)

ERROR HANDLING:
  - Flag and model resolution errors are returned.
  - Classification failures are not errors: the printed result carries them.

USAGE:
  foodallergens classify --model qwen2.5-1.5b.gguf --ingredients "milk, sugar"

RELATED FILES:
  - internal/engine/driver.go
*/

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IsseiKhai277/foodallergens/internal/engine"
)

var (
	classifyModel       string
	classifyPrompt      string
	classifyIngredients string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify one prompt and print the encoded result",
	Example: `  # Raw prompt, sent as-is
  foodallergens classify --model qwen2.5-1.5b.gguf --prompt "List the allergens in: peanut butter"

  # Ingredient list, wrapped in the allergen prompt and the model's chat template
  foodallergens classify --ingredients "wheat flour, butter, eggs"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (classifyPrompt == "") == (classifyIngredients == "") {
			return errors.New("exactly one of --prompt or --ingredients is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		name := classifyModel
		if name == "" {
			name = cfg.DefaultModel
		}
		if name == "" {
			return errors.New("--model is required (no default_model configured)")
		}
		models, err := engine.Catalog{Dir: cfg.ModelDir}.Select([]string{name})
		if err != nil {
			return err
		}
		m := models[0]

		prompt := classifyPrompt
		if classifyIngredients != "" {
			prompt = engine.PromptFor(m.Name, classifyIngredients)
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), newDriver(cfg).Classify(prompt, m.Path))
		return err
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVarP(&classifyModel, "model", "m", "", "Model file name in model_dir, or a path (default: default_model)")
	classifyCmd.Flags().StringVarP(&classifyPrompt, "prompt", "p", "", "Prompt text, sent unmodified")
	classifyCmd.Flags().StringVarP(&classifyIngredients, "ingredients", "i", "", "Ingredient list to build the allergen prompt from")
}
