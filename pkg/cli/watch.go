package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/anymod/pkg/observability"
)

func newWatchCommand(opts *globalOptions) *cobra.Command {
	var maxEvents int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Report modules and packages as they appear and disappear",
		Long: `Watch the search paths and print an event whenever a module or package is
created or removed. Runs until interrupted. When metrics are enabled and a
metrics address is configured, /metrics is served while watching.`,
		Example: `  anymod watch -p ./plugins
  ANYMOD_METRICS_ENABLED=true ANYMOD_METRICS_ADDR=:9090 anymod watch --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWithApp(cmd, func(ctx context.Context, a *app) error {
				return runWatch(ctx, a, maxEvents)
			})
		},
	}

	cmd.Flags().IntVar(&maxEvents, "max-events", 0, "Stop after this many events (0 = unlimited)")

	return cmd
}

func runWatch(ctx context.Context, a *app, maxEvents int) error {
	ctx, stop := observability.SignalContext(ctx)
	defer stop()

	if addr := a.cfg.Observability.MetricsAddr; addr != "" && a.registry != nil {
		if err := a.serveMetrics(addr); err != nil {
			return err
		}
	}

	events, err := a.loader.Watch(ctx)
	if err != nil {
		return err
	}
	a.log.WithField("paths", a.loader.Paths().Paths()).Info("Watching search paths")

	enc := json.NewEncoder(a.out)
	seen := 0
	for ev := range events {
		if a.json {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(a.out, "%-8s %s\t%s\n", ev.Op, ev.Name, ev.Path)
		}

		seen++
		if maxEvents > 0 && seen >= maxEvents {
			stop()
			break
		}
	}

	// Let the watcher goroutine observe cancellation and close the channel
	for range events {
	}

	a.log.WithField("events", seen).Info("Watch stopped")
	return nil
}

// serveMetrics starts the metrics endpoint and registers its shutdown
func (a *app) serveMetrics(addr string) error {
	mux := http.NewServeMux()
	observability.RegisterMetricsEndpoint(mux, a.registry)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		defer observability.RecoverPanicWithCallback(a.log, "metrics server", func() {
			listener.Close()
		})
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Metrics server failed")
		}
	}()

	a.shutdown.RegisterShutdownFunc(server.Shutdown)
	a.log.WithFields(logrus.Fields{"addr": listener.Addr().String()}).Info("Serving metrics")

	return nil
}
