/*
PURPOSE:
  Defines the root Cobra command for the foodallergens CLI.
  Handles global flags, config loading and logger setup.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - Every subcommand needs the same config and the same llama engine, so
    both are built here once per invocation.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/foodallergens/main.go
  - Calls: Child commands (classify, run, serve, list-models, report, query, functions)
  - Uses: internal/config, internal/output, internal/llama, internal/engine

ERROR HANDLING:
  - Returns error to main.go for exit code handling.
  - Config errors surface before any subcommand work starts.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Subcommands print results to cmd.OutOrStdout(); logs go to stderr.

USAGE:
  Called by main.go.

RELATED FILES:
  - cmd/foodallergens/main.go
  - internal/config/config.go

MAINTENANCE:
  - Update when adding global configuration options.
*/

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/IsseiKhai277/foodallergens/internal/config"
	"github.com/IsseiKhai277/foodallergens/internal/engine"
	"github.com/IsseiKhai277/foodallergens/internal/llama"
	"github.com/IsseiKhai277/foodallergens/internal/output"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile   string
	logFormat string
	verbose   bool

	rootCmd = &cobra.Command{
		Use:   "foodallergens",
		Short: "Allergen classification over local llama.cpp models",
		Long: `Classifies food ingredient lists into allergen labels with local GGUF models.
Use 'classify' for a single call, 'run' to evaluate models against the dataset
and 'serve' to expose classification over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./foodallergens.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig loads and validates the config, then configures the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	output.Configure(os.Stderr, cfg.LogFormat, verbose)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newDriver builds the generation driver the config describes.
func newDriver(cfg *config.Config) *engine.Driver {
	d := engine.NewDriver(llama.NewEngine(cfg.LibDir))
	d.Settings = cfg.Generation
	return d
}
