/*
PURPOSE:
  Discovers and resolves local GGUF model files.
  Replaces host-side model discovery with a directory listing.

REQUIREMENTS:
  User-specified:
  - List available models.
  - Callers name models by file name; the file must live in the model dir.

  Implementation-discovered:
  - HTTP callers must not escape the model dir ("../../etc/passwd").
  - Model size is useful context in list output and logs.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (list-models, run, classify), internal/server, Runner

ERROR HANDLING:
  - ErrModelNotFound for unknown names, ErrBadModelName for names that
    are not plain file names.

USAGE:
  c := engine.Catalog{Dir: cfg.ModelDir}
  models, err := c.List()
  path, err := c.Resolve("qwen2.5-1.5b-instruct-q4_k_m.gguf")

RELATED FILES:
  - internal/config/config.go
*/

package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ModelExt is the extension of loadable model files.
const ModelExt = ".gguf"

var (
	ErrModelNotFound = errors.New("model not found")
	ErrBadModelName  = errors.New("invalid model name")
)

// ModelInfo describes one model file.
type ModelInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size_bytes"`
}

// Catalog lists the models of one directory.
type Catalog struct {
	Dir string
}

// List returns every .gguf file in the directory, sorted by name.
func (c Catalog) List() ([]ModelInfo, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read model dir %s: %w", c.Dir, err)
	}

	var out []ModelInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ModelExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, ModelInfo{
			Name: entry.Name(),
			Path: filepath.Join(c.Dir, entry.Name()),
			Size: info.Size(),
		})
	}
	slices.SortFunc(out, func(a, b ModelInfo) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Resolve maps a model file name to its path inside the directory.
func (c Catalog) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrBadModelName, name)
	}
	path := filepath.Join(c.Dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return path, nil
}

// Select resolves names, or lists the whole directory when names is empty.
// Names that are existing paths are used as-is.
func (c Catalog) Select(names []string) ([]ModelInfo, error) {
	if len(names) == 0 {
		return c.List()
	}
	out := make([]ModelInfo, 0, len(names))
	for _, name := range names {
		if info, err := os.Stat(name); err == nil && !info.IsDir() && strings.ContainsRune(name, filepath.Separator) {
			out = append(out, ModelInfo{Name: filepath.Base(name), Path: name, Size: info.Size()})
			continue
		}
		path, err := c.Resolve(name)
		if err != nil {
			return nil, err
		}
		info, _ := os.Stat(path)
		out = append(out, ModelInfo{Name: name, Path: path, Size: info.Size()})
	}
	return out, nil
}
