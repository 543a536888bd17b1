/*
PURPOSE:
  Defines the configuration structure and loading logic for foodallergens.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Configure the model directory, models to evaluate, dataset and output.
  - Session settings are fixed defaults but stay visible in the file.

  Implementation-discovered:
  - YAML and TOML are both accepted, chosen by file extension.
  - Environment overrides (FOODALLERGENS_...) win over the file; CLI flags
    win over both.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine, internal/server
  - Dependencies: gopkg.in/yaml.v3, github.com/BurntSushi/toml

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - A missing default file is not an error (falls back to defaults).
  - A malformed environment value is an error naming the variable.

IMPLEMENTATION RULES:
  - Struct tags for both yaml and toml.
  - Durations are strings ("10m") in both formats.

USAGE:
  cfg, err := config.Load("foodallergens.yaml")

RELATED FILES:
  - internal/cli/root.go
  - internal/engine/driver.go (Settings)

MAINTENANCE:
  - Update applyEnv when adding fields that deployments override.
*/

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/IsseiKhai277/foodallergens/internal/engine"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FOODALLERGENS_"

// Duration is a time.Duration that reads "90s"-style strings from YAML and TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the full configuration for foodallergens.
type Config struct {
	// ModelDir holds the .gguf files; model names resolve inside it.
	ModelDir string `yaml:"model_dir" toml:"model_dir"`
	// Models restricts `run` to these file names. Empty means every .gguf in ModelDir.
	Models       []string `yaml:"models" toml:"models"`
	DefaultModel string   `yaml:"default_model" toml:"default_model"`
	// LibDir is where the llama.cpp shared libraries live.
	LibDir string `yaml:"lib_dir" toml:"lib_dir"`

	Dataset string `yaml:"dataset" toml:"dataset"`
	Sets    int    `yaml:"sets" toml:"sets"`
	// SetIndex is the 1-based data set to evaluate; 0 means all of them.
	SetIndex int `yaml:"set_index" toml:"set_index"`

	OutputDir    string `yaml:"output_dir" toml:"output_dir"`
	StoreBackend string `yaml:"store_backend" toml:"store_backend"`
	StorePath    string `yaml:"store_path" toml:"store_path"`

	ServerAddr string   `yaml:"server_addr" toml:"server_addr"`
	CacheTTL   Duration `yaml:"cache_ttl" toml:"cache_ttl"`
	CacheSize  uint64   `yaml:"cache_size" toml:"cache_size"`

	LogFormat string `yaml:"log_format" toml:"log_format"`

	Generation engine.Settings `yaml:"generation" toml:"generation"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ModelDir:     "./models",
		LibDir:       "./lib/llama",
		Dataset:      "./data/foodpreprocessed.xlsx",
		Sets:         20,
		SetIndex:     1,
		OutputDir:    "./out",
		StoreBackend: "sqlite",
		StorePath:    "./out/predictions.db",
		ServerAddr:   "127.0.0.1:8080",
		CacheTTL:     Duration{10 * time.Minute},
		CacheSize:    1024,
		LogFormat:    "text",
		Generation:   engine.DefaultSettings(),
	}
}

// DefaultFiles are searched in order when no path is given.
var DefaultFiles = []string{"foodallergens.yaml", "foodallergens.yml", "foodallergens.toml"}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		for _, name := range DefaultFiles {
			if _, err := os.Stat(name); err == nil {
				path = name
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// applyEnv overlays FOODALLERGENS_* variables onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, name, v, err)
		}
		*dst = n
		return nil
	}

	str("MODEL_DIR", &cfg.ModelDir)
	str("DEFAULT_MODEL", &cfg.DefaultModel)
	str("LIB_DIR", &cfg.LibDir)
	str("DATASET", &cfg.Dataset)
	str("OUTPUT_DIR", &cfg.OutputDir)
	str("STORE_BACKEND", &cfg.StoreBackend)
	str("STORE_PATH", &cfg.StorePath)
	str("SERVER_ADDR", &cfg.ServerAddr)
	str("LOG_FORMAT", &cfg.LogFormat)

	if v, ok := lookup(EnvPrefix + "MODELS"); ok && v != "" {
		cfg.Models = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "CACHE_TTL"); ok && v != "" {
		if err := cfg.CacheTTL.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("invalid %sCACHE_TTL=%q: %w", EnvPrefix, v, err)
		}
	}
	if err := num("SETS", &cfg.Sets); err != nil {
		return err
	}
	return num("SET_INDEX", &cfg.SetIndex)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports configuration errors that would only surface mid-run.
func (c *Config) Validate() error {
	if c.Sets <= 0 {
		return fmt.Errorf("sets must be positive, got %d", c.Sets)
	}
	if c.SetIndex < 0 || c.SetIndex > c.Sets {
		return fmt.Errorf("set_index %d out of range (0-%d)", c.SetIndex, c.Sets)
	}
	g := c.Generation
	if g.ContextSize <= 0 || g.Threads <= 0 || g.OutputBudget <= 0 || g.PromptSlack < 0 {
		return fmt.Errorf("invalid generation settings %+v", g)
	}
	return nil
}
