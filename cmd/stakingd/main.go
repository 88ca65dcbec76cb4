package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nftstake/config"
	"nftstake/core/events"
	"nftstake/core/genesis"
	"nftstake/core/state"
	"nftstake/crypto"
	"nftstake/indexer"
	"nftstake/native/custody"
	"nftstake/native/staking"
	"nftstake/observability/logging"
	telemetry "nftstake/observability/otel"
	"nftstake/rpc"
	"nftstake/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides the config value)")
	flag.Parse()

	if err := run(*configFile, *genesisFlag); err != nil {
		slog.Error("stakingd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configFile, genesisOverride string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	crypto.DefaultPrefix = crypto.AddressPrefix(strings.TrimSpace(cfg.AddressPrefix))
	programID, err := cfg.ProgramID()
	if err != nil {
		return err
	}
	if programID.IsZero() {
		programID = staking.DefaultProgramID
	}
	logger, err := logging.Setup("stakingd", logging.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Network:     cfg.NetworkName,
		ProgramID:   programID.String(),
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "stakingd",
		Environment: cfg.Environment,
		Network:     cfg.NetworkName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	manager := state.NewManager(db)
	assets := custody.NewEngine()
	engine := staking.NewEngine(manager, assets, programID)
	engine.SetLogger(logger.With(slog.String("component", "staking")))
	engine.SetPauses(cfg.Pauses.View())

	genesisPath := strings.TrimSpace(genesisOverride)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(cfg.Genesis)
	}
	if err := applyGenesis(logger, engine, manager, assets, genesisPath); err != nil {
		return err
	}

	history, err := indexer.Open(cfg.IndexerDriver, cfg.IndexerDSN)
	if err != nil {
		return err
	}
	defer func() { _ = history.Close() }()
	history.SetLogger(logger.With(slog.String("component", "indexer")))
	eventLog := logger.With(slog.String("component", "events"))
	engine.SetEmitter(events.MultiEmitter{
		history,
		events.EmitterFunc(func(evt events.Event) {
			eventLog.Debug("event emitted", slog.String("type", evt.EventType()))
		}),
	})
	logger.Info("History index ready",
		slog.String("driver", cfg.IndexerDriver),
		logging.MaskField("dsn", cfg.IndexerDSN))

	server, err := rpc.NewServer(rpc.ServerConfig{
		Engine:  engine,
		Custody: assets,
		State:   manager,
		History: history,
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             int(cfg.RateLimit.Burst),
		},
		Logger: logger.With(slog.String("component", "rpc")),
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(server.Handler(), "stakingd"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("stakingd listening", slog.String("address", cfg.ListenAddress))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		logger.Info("stakingd stopped")
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// applyGenesis seeds an empty ledger from path. A ledger that already holds
// its config record is left alone.
func applyGenesis(logger *slog.Logger, engine *staking.Engine, manager *state.Manager, assets *custody.Engine, path string) error {
	ledger := engine.Ledger()
	configAddr, err := ledger.ConfigAddress()
	if err != nil {
		return err
	}
	_, err = ledger.Config(configAddr)
	switch {
	case err == nil:
		if path != "" {
			logger.Info("Ledger already initialised; ignoring genesis", slog.String("path", path))
		}
		return nil
	case !errors.Is(err, staking.ErrAccountNotInitialized):
		return fmt.Errorf("inspect ledger: %w", err)
	}
	if path == "" {
		logger.Warn("Ledger has no config record and no genesis was supplied")
		return nil
	}
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return err
	}
	result, err := genesis.BuildGenesisFromSpec(spec, manager, assets, engine.ProgramID())
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("Genesis applied",
		slog.String("path", path),
		slog.Int("collections", result.Collections),
		slog.Int("users", result.Users),
		slog.Int("stakes", result.Stakes))
	return nil
}
