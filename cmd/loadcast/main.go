// Command loadcast runs the naive load forecasting benchmark.
//
// Depending on -mode it:
//   - naive: loads hourly load of every country, fits the multi-series naive
//     model on the cutoff windows of the training period, forecasts the test
//     period and writes forecast and per-country scores to -output-dir
//   - serve: repeats the naive benchmark every -interval and serves the
//     latest forecast snapshots over HTTP
//   - regressors: projects one year of weather observations of a station
//     over the test period and writes the future regressors of a country
//   - weather: downloads hourly observations of every configured weather
//     station and writes one file per station
//
// In serve mode an HTTP API is exposed on port 8081 (configurable):
//   - GET /forecast/current?series=<country> - Latest forecast snapshot
//   - GET /scores - Test-period scores of every series
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	loadcast \
//	  -mode=naive \
//	  -adapter=file \
//	  -config-file=stages.yaml \
//	  -output-dir=out
//
// Environment variables:
//
//	MODE           - Run mode: naive, regressors, weather, serve (default: naive)
//	ADAPTER        - Load data source: opsd, http, file (default: opsd)
//	ADAPTER_*      - Adapter settings, e.g. ADAPTER_PATH=data/load.csv.gz
//	COUNTRIES      - Comma separated country codes of the load data
//	CONFIG_FILE    - YAML stage parameters (date ranges, cutoffs, stations)
//	OUTPUT_DIR     - Output directory (default: out)
//	INTERVAL       - Benchmark loop interval in serve mode (default: 1h)
//	HTTP_TIMEOUT   - Timeout of outgoing HTTP requests (default: 2m)
//	WORKERS        - Concurrent weather downloads (default: number of CPUs)
//	STORAGE        - Snapshot storage: memory, redis (default: memory)
//	REDIS_ADDR     - Redis server address (default: localhost:6379)
//	SNAPSHOT_TTL   - Snapshot lifetime (default: 24h)
//	LOG_LEVEL      - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT     - Logging format: text, json (default: text)
//	TLS_ENABLED    - Serve the HTTP API over TLS (default: false)
//	TLS_CERT_FILE  - TLS certificate file
//	TLS_KEY_FILE   - TLS private key file
//	TLS_CA_FILE    - CA file; when set, client certificates are required
//	UPSTREAM_TLS_* - Same settings for requests to data sources
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HatiCode/loadcast/cmd/loadcast/config"
	"github.com/HatiCode/loadcast/cmd/loadcast/logger"
	"github.com/HatiCode/loadcast/cmd/loadcast/metrics"
	"github.com/HatiCode/loadcast/cmd/loadcast/models"
	"github.com/HatiCode/loadcast/cmd/loadcast/router"
	"github.com/HatiCode/loadcast/cmd/loadcast/store"
	"github.com/HatiCode/loadcast/pkg/adapters"
	"github.com/HatiCode/loadcast/pkg/httpx"
	"github.com/HatiCode/loadcast/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	logger.Info("starting loadcast",
		"version", version,
		"mode", cfg.Mode,
		"adapter", cfg.Adapter,
	)

	stages, err := config.LoadStages(cfg.ConfigFile)
	if err != nil {
		logger.Error("failed to load stages", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	switch cfg.Mode {
	case config.ModeNaive:
		err = runNaive(ctx, cfg, stages.Naive, logger)
	case config.ModeServe:
		err = runServe(ctx, cfg, stages.Naive, logger)
	case config.ModeRegressors:
		err = runRegressors(ctx, cfg, stages.Regressors, logger)
	case config.ModeWeather:
		err = runWeather(ctx, cfg, stages.Weather, logger)
	}

	if err != nil {
		logger.Error("loadcast failed", "mode", cfg.Mode, "error", err)
		os.Exit(1)
	}
}

// newBenchmark wires the load adapter, the naive model and the snapshot
// store of the naive stage. The returned store must be closed.
func newBenchmark(cfg *config.Config, stage config.NaiveStage, logger *slog.Logger) (*Benchmark, store.Store, error) {
	if err := stage.Validate(); err != nil {
		return nil, nil, err
	}

	if _, ok := cfg.AdapterConfig["output"]; !ok {
		cfg.AdapterConfig["output"] = stage.SourceColumn(config.TargetColumn)
	}
	adapter, err := buildAdapter(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	estimator, err := models.NewBenchmark(stage, logger)
	if err != nil {
		return nil, nil, err
	}

	s, err := store.New(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot store: %w", err)
	}

	m := metrics.New(adapter.Name(), estimator.Name())
	return NewBenchmark(adapter, estimator, stage, s, cfg.OutputDir, logger, m), s, nil
}

func buildAdapter(cfg *config.Config, logger *slog.Logger) (adapters.Adapter, error) {
	adapter, err := adapters.New(cfg.Adapter, cfg.AdapterConfig)
	if err != nil {
		return nil, err
	}

	switch a := adapter.(type) {
	case *adapters.OPSDAdapter:
		if a.HTTPClient, err = httpx.NewClient(cfg.UpstreamTLS, cfg.HTTPTimeout); err != nil {
			return nil, err
		}
		logger.Info("using OPSD adapter", "url", a.URL, "countries", a.Countries)
	case *adapters.HTTPAdapter:
		if a.HTTPClient, err = httpx.NewClient(cfg.UpstreamTLS, cfg.HTTPTimeout); err != nil {
			return nil, err
		}
		logger.Info("using HTTP adapter", "url", a.URL)
	case *adapters.FileAdapter:
		logger.Info("using file adapter", "path", a.Path, "format", a.Format)
	}
	return adapter, nil
}

func closeStore(s store.Store, logger *slog.Logger) {
	if err := s.Close(); err != nil {
		logger.Error("failed to close store", "error", err)
	}
}

func runNaive(ctx context.Context, cfg *config.Config, stage config.NaiveStage, logger *slog.Logger) error {
	b, s, err := newBenchmark(cfg, stage, logger)
	if err != nil {
		return err
	}
	defer closeStore(s, logger)

	report, err := b.Tick(ctx)
	if err != nil {
		return err
	}

	logger.Info("naive benchmark written",
		"forecast", report.ForecastPath,
		"scores", report.ScoresPath,
		"series", len(report.Scores),
	)
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, stage config.NaiveStage, logger *slog.Logger) error {
	b, s, err := newBenchmark(cfg, stage, logger)
	if err != nil {
		return err
	}
	defer closeStore(s, logger)

	mux := router.SetupRoutes(s, cfg.StaleAfter(), logger)
	handler := httpx.Chain(mux, httpx.LoggingMiddleware(logger), httpx.RecoveryMiddleware(logger))
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)
	if cfg.TLS.Enabled {
		tlsCfg, err := tls.NewServerTLSConfig(cfg.TLS)
		if err != nil {
			return fmt.Errorf("server TLS: %w", err)
		}
		httpServer.SetTLSConfig(tlsCfg)
		logger.Info("TLS enabled", "mtls", cfg.TLS.CAFile != "")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := b.Run(ctx, cfg.Interval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("benchmark loop failed", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			serverErr <- httpServer.StartTLS("", "")
			return
		}
		serverErr <- httpServer.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-serverErr:
		if runErr != nil {
			logger.Error("server failed", "error", runErr)
		}
	}

	logger.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		return errors.Join(runErr, fmt.Errorf("server shutdown: %w", err))
	}

	logger.Info("shutdown complete")
	return runErr
}

func runRegressors(ctx context.Context, cfg *config.Config, stage config.RegressorStage, logger *slog.Logger) error {
	if err := stage.Validate(); err != nil {
		return err
	}

	projector, err := models.NewProjection(stage, logger)
	if err != nil {
		return err
	}

	_, err = NewRegressors(stage, projector, cfg.OutputDir, logger).Run(ctx)
	return err
}

func runWeather(ctx context.Context, cfg *config.Config, stage config.WeatherStage, logger *slog.Logger) error {
	if err := stage.Validate(); err != nil {
		return err
	}

	client, err := httpx.NewClient(cfg.UpstreamTLS, cfg.HTTPTimeout)
	if err != nil {
		return err
	}

	report, err := fetchWeather(ctx, stage, client, cfg.Workers, logger)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		logger.Warn("some stations failed", "failed", report.Failed, "total", len(report.Results))
	}
	return nil
}
