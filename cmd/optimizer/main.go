package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/fuelchain-optimizer/core"
	"github.com/signalsfoundry/fuelchain-optimizer/internal/config"
	"github.com/signalsfoundry/fuelchain-optimizer/internal/ingest"
	"github.com/signalsfoundry/fuelchain-optimizer/internal/journal"
	"github.com/signalsfoundry/fuelchain-optimizer/internal/logging"
	"github.com/signalsfoundry/fuelchain-optimizer/internal/observability"
	"github.com/signalsfoundry/fuelchain-optimizer/internal/roundapi"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults apply when empty)")
	dataDir := flag.String("data", "", "Directory with the network CSV files (overrides config)")
	apiKey := flag.String("api-key", "", "Round server API key (overrides config and FUEL_API_KEY)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	flag.Parse()

	log := logging.NewFromEnv()

	if err := run(*configPath, *dataDir, *apiKey, *metricsAddr, log); err != nil {
		log.Error(context.Background(), "run failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath, dataDir, apiKey, metricsAddr string, log logging.Logger) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if apiKey != "" {
		cfg.API.APIKey = apiKey
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = metricsAddr
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	net, err := ingest.NewLoader(cfg.DataDir, log).Load(ctx)
	if err != nil {
		return err
	}

	var opts []core.DriverOption
	if cfg.Run.EndgameWindow > 0 {
		opts = append(opts, core.WithEndgameWindow(cfg.Run.EndgameWindow))
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		collector, err := observability.NewRunCollector(nil)
		if err != nil {
			return err
		}
		metricsSrv = serveMetrics(cfg.Metrics.Addr, collector, log)
		opts = append(opts, core.WithObserver(collector))
	}
	defer func() {
		if metricsSrv == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	if cfg.Journal.Enabled {
		jrnl, err := journal.Open(cfg.Journal.Path, log)
		if err != nil {
			return err
		}
		defer jrnl.Close()
		opts = append(opts, core.WithObserver(jrnl))
	}

	client := roundapi.NewClient(roundapi.Config{
		BaseURL:    cfg.API.BaseURL,
		APIKey:     cfg.API.APIKey,
		MaxRetries: cfg.API.MaxRetries,
		Timeout:    cfg.API.Timeout.Std(),
	}, log)

	planner := core.NewPlanner(cfg.Run.Horizon, cfg.Run.LastDay, cfg.Run.EndgameWindow, nil, log)
	driver := core.NewDriver(net, planner, client, cfg.Run.LastDay, log, opts...)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	log.Info(runCtx, "starting run",
		logging.Int("last_day", cfg.Run.LastDay),
		logging.Int("horizon_days", cfg.Run.Horizon),
		logging.String("server", cfg.API.BaseURL),
	)

	if err := driver.Run(runCtx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn(runCtx, "run interrupted")
		}
		return err
	}

	log.Info(runCtx, "run complete", logging.Int("days", cfg.Run.LastDay+1))
	return nil
}

func serveMetrics(addr string, collector *observability.RunCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
