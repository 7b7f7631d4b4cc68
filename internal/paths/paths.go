package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	appName = "iresolve"

	// IndexFileName is the index record created inside a cache directory.
	IndexFileName = "modules.json"

	// ConfigFileName is the tool configuration file inside the config directory.
	ConfigFileName = "config.toml"
)

// indexSuffixes are the file suffixes that mark a --cache value as a record
// file instead of a cache directory.
var indexSuffixes = []string{".json", ".json.zst", ".zst", ".db", ".sqlite"}

// CacheDir returns the user-level cache directory for iresolve.
// $XDG_CACHE_HOME is honored; otherwise ~/.cache/iresolve.
func CacheDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".cache", appName), nil
}

// ConfigDir returns the user-level configuration directory for iresolve.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// DefaultConfigPath returns the path of the user configuration file.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// IndexFile maps a --cache value to the index record location.
// A value with a known record suffix is used as the file itself; anything
// else is a directory that holds modules.json. Empty means the default cache.
func IndexFile(cache string) (string, error) {
	if cache == "" {
		dir, err := CacheDir()
		if err != nil {
			return "", err
		}
		cache = dir
	}

	cache = ExpandHome(cache)
	if !HasIndexSuffix(cache) {
		cache = filepath.Join(cache, IndexFileName)
	}

	abs, err := filepath.Abs(cache)
	if err != nil {
		return "", fmt.Errorf("resolving index path: %w", err)
	}
	return abs, nil
}

// HasIndexSuffix reports whether path ends in one of the record suffixes.
func HasIndexSuffix(path string) bool {
	lower := strings.ToLower(path)
	for _, s := range indexSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// LogFile returns the log file path used when file logging is enabled
// without an explicit location.
func LogFile(indexPath string) string {
	return filepath.Join(filepath.Dir(indexPath), "logs", appName+".log")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// SplitList splits a comma-separated path list, trimming blanks and
// dropping empty entries.
func SplitList(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsAbsolute reports whether p should be used verbatim rather than resolved
// against a base directory. A leading backslash counts as absolute so
// Windows-style entries written on other systems are not rewritten.
func IsAbsolute(p string) bool {
	return filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`)
}

// ResolveAgainst resolves p against base unless it is absolute.
func ResolveAgainst(base, p string) string {
	if IsAbsolute(p) {
		return p
	}
	return filepath.Join(base, filepath.FromSlash(p))
}
