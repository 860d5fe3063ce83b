// Package config provides configuration management for the anymod loader.
//
// # Overview
//
// Configuration is built in three layers: built-in defaults, an optional YAML
// file, then ANYMOD_* environment overrides. The result is validated before
// it is returned.
//
// # Configuration File
//
// The file is read from the path passed to LoadConfig, or from $ANYMOD_CONFIG
// when no path is given:
//
//	loader:
//	  paths: [/opt/anymod/plugins, ./plugins]
//	  default_paths: true
//	  prefix: ext.
//	  module_suffixes: [.go, .so]
//	  package_marker: plugin.yaml
//	  cache_size: 256
//	  follow_symlinks: false
//	observability:
//	  log_level: info      # debug, info, warn, error
//	  log_format: text     # text, json
//	  metrics_enabled: true
//	  metrics_addr: ":9090"
//	  tracing_enabled: false
//	  service_name: anymod
//
// # Environment Overrides
//
//	ANYMOD_PATHS="/opt/plugins:./plugins"  # os.PathListSeparator separated
//	ANYMOD_DEFAULT_PATHS="true"
//	ANYMOD_PREFIX="ext."
//	ANYMOD_MODULE_SUFFIXES=".go,.so"
//	ANYMOD_PACKAGE_MARKER="plugin.yaml"
//	ANYMOD_CACHE_SIZE="256"
//	ANYMOD_FOLLOW_SYMLINKS="false"
//	ANYMOD_LOG_LEVEL="info"
//	ANYMOD_LOG_FORMAT="text"
//	ANYMOD_METRICS_ENABLED="true"
//	ANYMOD_METRICS_ADDR=":9090"
//	ANYMOD_TRACING_ENABLED="false"
//	ANYMOD_SERVICE_NAME="anymod"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig("")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	loader := plugins.NewLoader(cfg.Loader.Options())
//
// # Related Packages
//
//   - pkg/plugins: Consumes LoaderConfig through Options
//   - pkg/observability: Uses the observability settings
package config
