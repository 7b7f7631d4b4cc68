package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"iresolve/internal/paths"
)

// Config represents the complete iresolve configuration
type Config struct {
	// Cache is the index location: a directory holding modules.json, or a
	// record file (.json, .json.zst, .db). Empty means the user cache dir.
	Cache string `json:"cache" mapstructure:"cache" toml:"cache"`

	Python   PythonConfig   `json:"python" mapstructure:"python" toml:"python"`
	Index    IndexConfig    `json:"index" mapstructure:"index" toml:"index"`
	Detector DetectorConfig `json:"detector" mapstructure:"detector" toml:"detector"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging" toml:"logging"`
}

// PythonConfig describes the interpreter whose module universe is indexed
type PythonConfig struct {
	Interpreter string `json:"interpreter" mapstructure:"interpreter" toml:"interpreter"`
	// SearchPath replaces the interpreter's sys.path as the default roots when set.
	SearchPath      []string `json:"searchPath" mapstructure:"searchPath" toml:"searchPath"`
	QueryTimeoutMs  int      `json:"queryTimeoutMs" mapstructure:"queryTimeoutMs" toml:"queryTimeoutMs"`
	LoadTimeoutMs   int      `json:"loadTimeoutMs" mapstructure:"loadTimeoutMs" toml:"loadTimeoutMs"`
	LiveLoad        bool     `json:"liveLoad" mapstructure:"liveLoad" toml:"liveLoad"`
	LoaderCacheSize int      `json:"loaderCacheSize" mapstructure:"loaderCacheSize" toml:"loaderCacheSize"`
	// DetectVenv uses the project's virtualenv interpreter when Interpreter is empty.
	DetectVenv bool `json:"detectVenv" mapstructure:"detectVenv" toml:"detectVenv"`
}

// IndexConfig contains index build settings
type IndexConfig struct {
	Denylist         []string `json:"denylist" mapstructure:"denylist" toml:"denylist"`
	Extractor        string   `json:"extractor" mapstructure:"extractor" toml:"extractor"`
	Workers          int      `json:"workers" mapstructure:"workers" toml:"workers"`
	MaxModules       int      `json:"maxModules" mapstructure:"maxModules" toml:"maxModules"`
	MaxFileSizeBytes int64    `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes" toml:"maxFileSizeBytes"`
	BuildTimeoutMs   int      `json:"buildTimeoutMs" mapstructure:"buildTimeoutMs" toml:"buildTimeoutMs"`
	MaxAgeHours      int      `json:"maxAgeHours" mapstructure:"maxAgeHours" toml:"maxAgeHours"`
	SortCandidates   bool     `json:"sortCandidates" mapstructure:"sortCandidates" toml:"sortCandidates"`
}

// DetectorConfig contains unresolved-name detector settings
type DetectorConfig struct {
	Module    string `json:"module" mapstructure:"module" toml:"module"`
	TimeoutMs int    `json:"timeoutMs" mapstructure:"timeoutMs" toml:"timeoutMs"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level" toml:"level"`
	File       string `json:"file" mapstructure:"file" toml:"file"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize" toml:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups" toml:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Cache: "",
		Python: PythonConfig{
			Interpreter:     "",
			SearchPath:      []string{},
			QueryTimeoutMs:  10000,
			LoadTimeoutMs:   5000,
			LiveLoad:        true,
			LoaderCacheSize: 4096,
			DetectVenv:      false,
		},
		Index: IndexConfig{
			Denylist:         []string{"^PyQt5"},
			Extractor:        "text",
			Workers:          runtime.NumCPU(),
			MaxModules:       0,
			MaxFileSizeBytes: 4 << 20,
			BuildTimeoutMs:   0,
			MaxAgeHours:      24 * 7,
			SortCandidates:   false,
		},
		Detector: DetectorConfig{
			Module:    "pyflakes",
			TimeoutMs: 30000,
		},
		Logging: LoggingConfig{
			Level:      "",
			File:       "",
			MaxSize:    "",
			MaxBackups: 3,
		},
	}
}

// setDefaults registers every key so env overrides and Unmarshal see them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("cache", d.Cache)

	v.SetDefault("python.interpreter", d.Python.Interpreter)
	v.SetDefault("python.searchPath", d.Python.SearchPath)
	v.SetDefault("python.queryTimeoutMs", d.Python.QueryTimeoutMs)
	v.SetDefault("python.loadTimeoutMs", d.Python.LoadTimeoutMs)
	v.SetDefault("python.liveLoad", d.Python.LiveLoad)
	v.SetDefault("python.loaderCacheSize", d.Python.LoaderCacheSize)
	v.SetDefault("python.detectVenv", d.Python.DetectVenv)

	v.SetDefault("index.denylist", d.Index.Denylist)
	v.SetDefault("index.extractor", d.Index.Extractor)
	v.SetDefault("index.workers", d.Index.Workers)
	v.SetDefault("index.maxModules", d.Index.MaxModules)
	v.SetDefault("index.maxFileSizeBytes", d.Index.MaxFileSizeBytes)
	v.SetDefault("index.buildTimeoutMs", d.Index.BuildTimeoutMs)
	v.SetDefault("index.maxAgeHours", d.Index.MaxAgeHours)
	v.SetDefault("index.sortCandidates", d.Index.SortCandidates)

	v.SetDefault("detector.module", d.Detector.Module)
	v.SetDefault("detector.timeoutMs", d.Detector.TimeoutMs)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
}

// LoadConfig loads configuration from path, or from the user config
// directory when path is empty. A missing default file yields defaults;
// a missing explicit file is an error. IRESOLVE_* environment variables
// override file values (IRESOLVE_INDEX_WORKERS=2).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("IRESOLVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(paths.ExpandHome(path))
	} else {
		dir, err := paths.ConfigDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, nil
}

// Encode renders the configuration as TOML
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the configuration as TOML, creating parent directories
func (c *Config) Save(path string) error {
	data, err := c.Encode()
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Index.Extractor {
	case "text", "parser":
	default:
		return &ConfigError{Field: "index.extractor", Message: "must be 'text' or 'parser'"}
	}
	if c.Index.Workers < 0 {
		return &ConfigError{Field: "index.workers", Message: "must not be negative"}
	}
	if c.Index.MaxModules < 0 {
		return &ConfigError{Field: "index.maxModules", Message: "must not be negative"}
	}
	if c.Python.LoadTimeoutMs <= 0 {
		return &ConfigError{Field: "python.loadTimeoutMs", Message: "must be positive"}
	}
	if c.Python.QueryTimeoutMs <= 0 {
		return &ConfigError{Field: "python.queryTimeoutMs", Message: "must be positive"}
	}
	if c.Detector.Module == "" {
		return &ConfigError{Field: "detector.module", Message: "must not be empty"}
	}
	return nil
}

// LoadTimeout returns the per-module live load timeout
func (c *Config) LoadTimeout() time.Duration {
	return time.Duration(c.Python.LoadTimeoutMs) * time.Millisecond
}

// QueryTimeout returns the timeout for interpreter queries such as sys.path
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Python.QueryTimeoutMs) * time.Millisecond
}

// BuildTimeout returns the overall build deadline, zero for none
func (c *Config) BuildTimeout() time.Duration {
	return time.Duration(c.Index.BuildTimeoutMs) * time.Millisecond
}

// DetectorTimeout returns the detector subprocess timeout
func (c *Config) DetectorTimeout() time.Duration {
	return time.Duration(c.Detector.TimeoutMs) * time.Millisecond
}

// MaxIndexAge returns the age after which an index is reported stale
func (c *Config) MaxIndexAge() time.Duration {
	return time.Duration(c.Index.MaxAgeHours) * time.Hour
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
