// Command supervisrd is the process supervisor's entry point (spec.md §6
// "CLI surface"): it takes exactly one positional argument, a path to a
// ".conf" configuration file, wires up logging/metrics/history/HTTP per
// SPEC_FULL.md §6, installs the hang-up reload handler, and runs the
// supervision loop until an `exit` instruction or a fatal error.
package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arashiyama/supervisr/internal/cli"
	"github.com/arashiyama/supervisr/internal/config"
	"github.com/arashiyama/supervisr/internal/history"
	"github.com/arashiyama/supervisr/internal/httpapi"
	"github.com/arashiyama/supervisr/internal/logger"
	"github.com/arashiyama/supervisr/internal/metrics"
	"github.com/arashiyama/supervisr/internal/program"
	"github.com/arashiyama/supervisr/internal/reloadsignal"
	"github.com/arashiyama/supervisr/internal/supervisor"
)

func main() {
	var (
		metricsListen string
		httpListen    string
		logFile       string
	)

	root := &cobra.Command{
		Use:   "supervisrd <config-path>",
		Short: "Supervise and keep alive a configured number of child processes per program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], metricsListen, httpListen, logFile)
		},
	}
	root.Flags().StringVar(&metricsListen, "metrics-listen", "", "address to serve Prometheus /metrics (e.g. :9090); overrides config metrics.listen")
	root.Flags().StringVar(&httpListen, "http-listen", "", "address to serve the read-only status API (e.g. :8080); overrides config http.listen")
	root.Flags().StringVar(&logFile, "log-file", "", "path to the supervisor's own event log; overrides config log.path")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath, metricsListenFlag, httpListenFlag, logFileFlag string) error {
	if err := config.ValidatePath(configPath); err != nil {
		return err
	}
	f, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, closer, err := logger.Open(logger.Config{
		Path:       firstNonEmpty(logFileFlag, f.Log.Path),
		MaxSizeMB:  f.Log.MaxSizeMB,
		MaxBackups: f.Log.MaxBackups,
		MaxAgeDays: f.Log.MaxAgeDays,
		Compress:   f.Log.Compress,
	})
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	hist := buildHistorySink(f.History, log)
	defer func() { _ = hist.Close() }()

	if f.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			log.Error("metrics registration failed", "error", err)
		}
		go serveMetrics(firstNonEmpty(metricsListenFlag, f.Metrics.Listen), log)
	}

	ext := make(chan supervisor.Instruction, 64)
	reload := reloadsignal.Install()
	loadCfg := func() (map[string]program.Config, error) { return config.Programs(configPath) }

	sup, err := supervisor.New(f.Programs, ext, ext, reload, loadCfg, log, hist)
	if err != nil {
		return err
	}

	if f.HTTP.Enabled {
		go serveHTTP(firstNonEmpty(httpListenFlag, f.HTTP.Listen), sup, log)
	}

	log.Info("supervisor starting", "config", configPath, "programs", len(f.Programs))
	sup.Autostart()
	go cli.Run(os.Stdin, os.Stderr, ext)
	sup.Run()
	return nil
}

func serveMetrics(addr string, log *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	log.Info("metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil { // #nosec G114 -- internal ops endpoint, no external exposure expected
		log.Error("metrics server stopped", "error", err)
	}
}

func serveHTTP(addr string, sup *supervisor.Supervisor, log *slog.Logger) {
	if addr == "" {
		return
	}
	log.Info("status API listening", "addr", addr)
	if err := http.ListenAndServe(addr, httpapi.NewRouter(sup).Handler()); err != nil { // #nosec G114
		log.Error("status API stopped", "error", err)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func buildHistorySink(cfg config.HistoryConfig, log *slog.Logger) history.Sink {
	switch cfg.Backend {
	case "sql":
		s, err := history.NewSQLSinkFromDSN(cfg.DSN)
		if err != nil {
			log.Error("history: sql sink init failed, using nop sink", "error", err)
			return history.NopSink{}
		}
		return s
	case "clickhouse":
		s, err := history.NewClickHouseSink(cfg.ClickHouseAddr, cfg.ClickHouseTable)
		if err != nil {
			log.Error("history: clickhouse sink init failed, using nop sink", "error", err)
			return history.NopSink{}
		}
		return s
	default:
		return history.NopSink{}
	}
}
