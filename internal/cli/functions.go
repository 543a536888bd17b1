package cli

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/IsseiKhai277/foodallergens/internal/output"
)

var functionsDir string

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "Manage the jq helper functions used by 'query'",
	Long: `The helpers (by_model, errored, exact, misses, hallucinations, abstentions,
mean, model_summary) are always in scope for 'query'. Install them to use the
same definitions with stock jq:

  jq -L ~/.config/foodallergens/functions 'include "foodallergens"; ...'`,
}

var functionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the built-in jq helper definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		prelude, err := output.Prelude()
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), prelude)
		return err
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the jq helpers to ~/.config/foodallergens/functions/",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := functionsDir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get user home directory: %w", err)
			}
			dir = filepath.Join(home, ".config", "foodallergens", "functions")
		}
		written, unchanged, err := installFunctions(dir)
		if err != nil {
			return err
		}
		output.Logger.Info("JQ functions installed", "dir", dir, "written", written, "unchanged", unchanged)
		return nil
	},
}

// installFunctions copies the embedded .jq files into dir, leaving files
// whose content already matches untouched.
func installFunctions(dir string) (written, unchanged int, err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, 0, fmt.Errorf("failed to create target directory %s: %w", dir, err)
	}
	names, err := fs.Glob(output.Functions, "functions/*.jq")
	if err != nil {
		return 0, 0, err
	}
	for _, name := range names {
		data, err := fs.ReadFile(output.Functions, name)
		if err != nil {
			return written, unchanged, err
		}
		target := filepath.Join(dir, path.Base(name))
		if have, err := os.ReadFile(target); err == nil && bytes.Equal(have, data) {
			unchanged++
			continue
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return written, unchanged, fmt.Errorf("failed to write %s: %w", target, err)
		}
		output.Logger.Debug("Installed function file", "path", target)
		written++
	}
	return written, unchanged, nil
}

func init() {
	installCmd.Flags().StringVar(&functionsDir, "dir", "", "Target directory (default ~/.config/foodallergens/functions)")
	functionsCmd.AddCommand(functionsListCmd, installCmd)
	rootCmd.AddCommand(functionsCmd)
}
