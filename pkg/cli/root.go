package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/anymod/pkg/config"
	"github.com/platinummonkey/anymod/pkg/observability"
	"github.com/platinummonkey/anymod/pkg/plugins"
)

const shutdownTimeout = 10 * time.Second

// globalOptions holds the persistent flags shared by every subcommand
type globalOptions struct {
	configPath   string
	paths        []string
	prefix       string
	defaultPaths bool
	logLevel     string
	logFormat    string
	jsonOutput   bool

	// Module tables used by the loader
	catalog     *plugins.Catalog
	entryPoints *plugins.EntryPointIndex
}

// app is the per-invocation runtime built from configuration and flags
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	loader   *plugins.Loader
	registry *prometheus.Registry
	shutdown *observability.ShutdownManager
	out      io.Writer
	json     bool
}

// NewRootCommand creates the root command using the process-wide catalog
func NewRootCommand() *cobra.Command {
	return newRootCommand(&globalOptions{
		catalog:     plugins.Default,
		entryPoints: plugins.DefaultEntryPoints,
	})
}

func newRootCommand(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "anymod",
		Short: "anymod - discover and load plugin modules",
		Long: `anymod discovers plugin modules and packages below a set of search paths,
imports them from the compiled-in catalog or from shared objects, and resolves
the implementation a module provides for a capability interface.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default $"+config.ConfigFileEnv+")")
	flags.StringSliceVarP(&opts.paths, "path", "p", nil, "Search path (repeatable, replaces configured paths)")
	flags.StringVar(&opts.prefix, "prefix", "", "Name prefix for discovered modules, e.g. ext.")
	flags.BoolVar(&opts.defaultPaths, "default-paths", true, "Also search the default plugin directories")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format (text, json)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")

	// Add subcommands
	root.AddCommand(newPathsCommand(opts))
	root.AddCommand(newDiscoverCommand(opts))
	root.AddCommand(newListCommand(opts))
	root.AddCommand(newFindCommand(opts))
	root.AddCommand(newLoadCommand(opts))
	root.AddCommand(newGetCommand(opts))
	root.AddCommand(newResolveCommand(opts))
	root.AddCommand(newEntryPointsCommand(opts))
	root.AddCommand(newWatchCommand(opts))

	return root
}

// newApp loads configuration, applies flag overrides and builds the loader
func (o *globalOptions) newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("path") {
		cfg.Loader.Paths = o.paths
	}
	if flags.Changed("prefix") {
		cfg.Loader.Prefix = o.prefix
	}
	if flags.Changed("default-paths") {
		cfg.Loader.DefaultPaths = o.defaultPaths
	}
	if flags.Changed("log-level") {
		cfg.Observability.LogLevel = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Observability.LogFormat = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	log, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		shutdown: observability.NewShutdownManager(log, shutdownTimeout),
		out:      cmd.OutOrStdout(),
		json:     o.jsonOutput,
	}

	opts := cfg.Loader.Options()
	opts.Logger = log
	opts.Catalog = o.catalog
	opts.EntryPoints = o.entryPoints

	if cfg.Observability.MetricsEnabled {
		a.registry = prometheus.NewRegistry()
		opts.Metrics = observability.NewMetrics(a.registry)
	}

	if cfg.Observability.TracingEnabled {
		tp := observability.NewTracerProvider(cfg.Observability.ServiceName, nil, log)
		a.shutdown.RegisterShutdownFunc(tp.Shutdown)
		opts.Tracer = observability.Tracer(tp)
	}

	a.loader = plugins.NewLoader(opts)
	log.WithFields(logrus.Fields{
		"paths":  a.loader.Paths().Paths(),
		"prefix": a.loader.Prefix(),
	}).Debug("Loader ready")

	return a, nil
}

// close flushes tracing and stops any background services
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.shutdown.Shutdown(ctx); err != nil {
		a.log.WithError(err).Warn("Shutdown incomplete")
	}
}

// runWithApp builds the runtime for cmd, runs fn and releases the runtime
func (o *globalOptions) runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := o.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	return fn(cmd.Context(), a)
}
