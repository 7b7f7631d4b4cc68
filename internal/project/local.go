// Package project discovers per-project settings for the file being
// resolved: extra search-path entries and the project's Python environment.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"iresolve/internal/paths"
)

const (
	// LocalConfigFile is the project-local configuration file name.
	LocalConfigFile = "iresolve.json"

	// PyprojectFile may carry the same settings under [tool.iresolve].
	PyprojectFile = "pyproject.toml"
)

// LocalConfig is a discovered project configuration.
type LocalConfig struct {
	// File is the configuration file that was read.
	File string `json:"file"`

	// Paths are the extra search roots, already resolved.
	Paths []string `json:"paths"`
}

// Dir is the directory holding the configuration file.
func (c *LocalConfig) Dir() string {
	return filepath.Dir(c.File)
}

// Discover walks upward from startDir looking for iresolve.json, then for a
// pyproject.toml with a [tool.iresolve] table. The nearest directory with
// either wins. The filesystem root is not searched. Returns nil, nil when
// nothing is found.
func Discover(startDir string) (*LocalConfig, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", startDir, err)
	}

	for filepath.Dir(dir) != dir {
		if cfg, err := readLocalJSON(dir); cfg != nil || err != nil {
			return cfg, err
		}
		if cfg, err := readPyproject(dir); cfg != nil || err != nil {
			return cfg, err
		}
		dir = filepath.Dir(dir)
	}
	return nil, nil
}

// readLocalJSON reads dir/iresolve.json. A present file ends the search
// even without a path key.
func readLocalJSON(dir string) (*LocalConfig, error) {
	file := filepath.Join(dir, LocalConfigFile)
	if _, err := os.Stat(file); err != nil {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	entries, err := pathEntries(v.Get("path"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return &LocalConfig{File: file, Paths: resolveEntries(dir, entries)}, nil
}

type pyproject struct {
	Tool struct {
		Iresolve *struct {
			Path any `toml:"path"`
		} `toml:"iresolve"`
	} `toml:"tool"`
}

// readPyproject reads dir/pyproject.toml. Only a [tool.iresolve] table
// ends the search.
func readPyproject(dir string) (*LocalConfig, error) {
	file := filepath.Join(dir, PyprojectFile)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, nil
	}

	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	if doc.Tool.Iresolve == nil {
		return nil, nil
	}

	entries, err := pathEntries(doc.Tool.Iresolve.Path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return &LocalConfig{File: file, Paths: resolveEntries(dir, entries)}, nil
}

// pathEntries accepts a comma-separated string or a list of strings.
func pathEntries(raw any) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return paths.SplitList(v), nil
	case []any:
		var out []string
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("path entries must be strings, got %T", item)
			}
			out = append(out, paths.SplitList(s)...)
		}
		return out, nil
	case []string:
		var out []string
		for _, s := range v {
			out = append(out, paths.SplitList(s)...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("path must be a string or list, got %T", raw)
	}
}

func resolveEntries(dir string, entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, paths.ResolveAgainst(dir, e))
	}
	return out
}
