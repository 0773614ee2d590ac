// Command losrays builds query-point datasets and line-of-sight ray
// geometry for tropospheric delay ray-tracing.
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/losrays/internal/config"
	"github.com/signalsfoundry/losrays/internal/logging"
	"github.com/signalsfoundry/losrays/internal/observability"
	"github.com/signalsfoundry/losrays/querystore"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand of one invocation.
type app struct {
	logLevel    string
	logFormat   string
	metricsAddr string

	cfg        *config.Config
	log        logging.Logger
	metrics    *observability.PipelineCollector
	shutdown   func(context.Context) error
	metricsSrv *http.Server
}

func newRootCmd() *cobra.Command {
	a := &app{log: logging.Noop()}

	root := &cobra.Command{
		Use:   "losrays",
		Short: "Line-of-sight ray geometry for tropospheric delay ray-tracing",
		Long: `losrays prepares ground points and line-of-sight vectors for ray-tracing
through a weather model.

A typical run writes a query-point dataset, fills in the ray parameters and
then samples rays:
  losrays points --bbox 34,35,-119,-118 --rows 3 --cols 4 --out query.nc
  losrays rays --in query.nc
  losrays sample --in query.nc --pixel 0 --step 500

Configuration is read from LOSRAYS_* environment variables; flags override them.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOSRAYS_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text or json (default from LOSRAYS_LOG_FORMAT)")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics on this address while running")

	root.AddCommand(
		newPointsCmd(a),
		newRaysCmd(a),
		newSampleCmd(a),
		newInspectCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	base := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	ctx, log := logging.WithRunLogger(cmd.Context(), base.With(logging.String("command", cmd.Name())))
	a.log = log
	cmd.SetContext(ctx)

	tracing := cfg.TracingOptions()
	tracing.Output = cmd.ErrOrStderr()
	a.shutdown, err = observability.InitTracing(ctx, tracing, log)
	if err != nil {
		return err
	}

	a.metrics, err = observability.NewPipelineCollector(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		a.metricsSrv = serveMetrics(ctx, cfg.MetricsAddr, a.metrics, log)
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if a.metrics != nil {
		if summary, err := a.metrics.Summary(); err == nil {
			a.log.Info(ctx, "run complete", logging.Any("metrics", summary))
		}
	}
	observability.ShutdownWithTimeout(ctx, a.shutdown, a.log)
	if a.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// storeOptions are the querystore options shared by writing subcommands.
func (a *app) storeOptions(extra ...querystore.Option) []querystore.Option {
	opts := []querystore.Option{
		querystore.WithEPSG(a.cfg.Store.EPSG),
		querystore.WithLogger(a.log),
		querystore.WithMetrics(a.metrics),
	}
	return append(opts, extra...)
}

func serveMetrics(ctx context.Context, addr string, collector *observability.PipelineCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(ctx, "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(ctx, "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
