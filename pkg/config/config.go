package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/anymod/pkg/observability"
	"github.com/platinummonkey/anymod/pkg/plugins"
)

// ConfigFileEnv names the environment variable holding the config file path
const ConfigFileEnv = "ANYMOD_CONFIG"

// Config holds all application configuration
type Config struct {
	// Loader configuration
	Loader LoaderConfig `yaml:"loader"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// LoaderConfig holds plugin discovery settings
type LoaderConfig struct {
	Paths          []string `yaml:"paths"`
	DefaultPaths   bool     `yaml:"default_paths"` // Also search the existing default plugin directories
	Prefix         string   `yaml:"prefix"`
	ModuleSuffixes []string `yaml:"module_suffixes"`
	PackageMarker  string   `yaml:"package_marker"`
	CacheSize      int      `yaml:"cache_size"`
	FollowSymlinks bool     `yaml:"follow_symlinks"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsAddr    string `yaml:"metrics_addr"` // Serve /metrics here when set

	// Tracing
	TracingEnabled bool   `yaml:"tracing_enabled"`
	ServiceName    string `yaml:"service_name"`
}

// Default returns the built-in configuration
func Default() *Config {
	scan := plugins.DefaultScanOptions()
	return &Config{
		Loader: LoaderConfig{
			DefaultPaths:   true,
			ModuleSuffixes: scan.ModuleSuffixes,
			PackageMarker:  scan.PackageMarker,
			CacheSize:      plugins.DefaultResolverCacheSize,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   observability.FormatText,
			ServiceName: "anymod",
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file at path
// (or $ANYMOD_CONFIG when path is empty) and ANYMOD_* environment overrides
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile merges a YAML config file into c
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// loadEnv applies environment overrides
func (c *Config) loadEnv() {
	if paths := getEnv("ANYMOD_PATHS", ""); paths != "" {
		c.Loader.Paths = filepath.SplitList(paths)
	}
	c.Loader.DefaultPaths = getEnvBool("ANYMOD_DEFAULT_PATHS", c.Loader.DefaultPaths)
	c.Loader.Prefix = getEnv("ANYMOD_PREFIX", c.Loader.Prefix)
	if suffixes := getEnv("ANYMOD_MODULE_SUFFIXES", ""); suffixes != "" {
		c.Loader.ModuleSuffixes = splitList(suffixes)
	}
	c.Loader.PackageMarker = getEnv("ANYMOD_PACKAGE_MARKER", c.Loader.PackageMarker)
	c.Loader.CacheSize = getEnvInt("ANYMOD_CACHE_SIZE", c.Loader.CacheSize)
	c.Loader.FollowSymlinks = getEnvBool("ANYMOD_FOLLOW_SYMLINKS", c.Loader.FollowSymlinks)

	c.Observability.LogLevel = getEnv("ANYMOD_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("ANYMOD_LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.MetricsEnabled = getEnvBool("ANYMOD_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.MetricsAddr = getEnv("ANYMOD_METRICS_ADDR", c.Observability.MetricsAddr)
	c.Observability.TracingEnabled = getEnvBool("ANYMOD_TRACING_ENABLED", c.Observability.TracingEnabled)
	c.Observability.ServiceName = getEnv("ANYMOD_SERVICE_NAME", c.Observability.ServiceName)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate loader config
	if c.Loader.Prefix != "" {
		if !strings.HasSuffix(c.Loader.Prefix, ".") {
			return fmt.Errorf("prefix %q must end with '.'", c.Loader.Prefix)
		}
		if _, _, err := plugins.ParseTarget(c.Loader.Prefix + "X"); err != nil {
			return fmt.Errorf("invalid prefix %q: %w", c.Loader.Prefix, err)
		}
	}
	if len(c.Loader.ModuleSuffixes) == 0 {
		return fmt.Errorf("at least one module suffix is required")
	}
	for _, suffix := range c.Loader.ModuleSuffixes {
		if len(suffix) < 2 || !strings.HasPrefix(suffix, ".") {
			return fmt.Errorf("invalid module suffix %q (expected e.g. .go)", suffix)
		}
	}
	if c.Loader.PackageMarker == "" {
		return fmt.Errorf("package marker is required")
	}
	if strings.ContainsRune(c.Loader.PackageMarker, filepath.Separator) {
		return fmt.Errorf("package marker %q must be a file name", c.Loader.PackageMarker)
	}
	if c.Loader.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative: %d", c.Loader.CacheSize)
	}

	// Validate observability config
	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Observability.LogLevel)
	}
	switch strings.ToLower(c.Observability.LogFormat) {
	case observability.FormatText, observability.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Observability.LogFormat)
	}
	if c.Observability.MetricsAddr != "" && !c.Observability.MetricsEnabled {
		return fmt.Errorf("metrics address is set but metrics are disabled")
	}
	if c.Observability.TracingEnabled && c.Observability.ServiceName == "" {
		return fmt.Errorf("service name is required when tracing is enabled")
	}

	return nil
}

// SearchPaths returns the configured paths followed by the default plugin
// directories that exist, when enabled
func (c LoaderConfig) SearchPaths() []string {
	paths := append([]string(nil), c.Paths...)
	if !c.DefaultPaths {
		return paths
	}
	for _, dir := range plugins.GetDefaultPluginDirectories() {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			paths = append(paths, dir)
		}
	}
	return paths
}

// Options converts the loader settings into plugins.Options
func (c LoaderConfig) Options() plugins.Options {
	return plugins.Options{
		Paths:  c.SearchPaths(),
		Prefix: c.Prefix,
		Scan: plugins.ScanOptions{
			ModuleSuffixes: c.ModuleSuffixes,
			PackageMarker:  c.PackageMarker,
			FollowSymlinks: c.FollowSymlinks,
		},
		CacheSize: c.CacheSize,
	}
}

// splitList splits a comma separated list, dropping empty items
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
