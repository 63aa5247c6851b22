package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/HerbHall/heartbeat/internal/auth"
	"github.com/HerbHall/heartbeat/internal/config"
	"github.com/HerbHall/heartbeat/internal/definition"
	"github.com/HerbHall/heartbeat/internal/event"
	"github.com/HerbHall/heartbeat/internal/heartbeat"
	"github.com/HerbHall/heartbeat/internal/monitor"
	"github.com/HerbHall/heartbeat/internal/server"
	"github.com/HerbHall/heartbeat/internal/store"
	"github.com/HerbHall/heartbeat/internal/telemetry"
	"github.com/HerbHall/heartbeat/internal/version"
	"github.com/HerbHall/heartbeat/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type serveCommand struct {
	global *globalOptions
}

func (c *serveCommand) Execute([]string) error {
	cfg, logger, err := loadConfig(c.global.Config)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("heartbeat stopped with error", zap.Error(err))
		return err
	}
	logger.Info("heartbeat stopped")
	return nil
}

// loadConfig reads, decodes and validates configuration and builds the logger.
func loadConfig(path string) (config.Config, *zap.Logger, error) {
	v, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := cfg.Logging.Build()
	if err != nil {
		return config.Config{}, nil, err
	}
	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults", zap.String("component", "config"))
	}
	return cfg, logger, nil
}

// openDefinitions returns the merged definition source and, when a database
// path is configured, the definition store backing the API.
func openDefinitions(ctx context.Context, cfg config.Config, logger *zap.Logger) (definition.Source, *store.SQLiteStore, *definition.Store, error) {
	root, err := filepath.Abs(cfg.Definitions.RootDirectory)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve definitions root: %w", err)
	}
	dir := &definition.DirectorySource{
		Root:      root,
		Pattern:   cfg.Definitions.SearchPattern,
		Recursive: cfg.Definitions.IncludeSubdirectories,
		Logger:    logger.Named("definitions"),
	}
	if cfg.Database.Path == "" {
		return dir, nil, nil, nil
	}

	db, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	defs, err := definition.NewStore(ctx, db, logger.Named("definitions"))
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	logger.Info("database initialized", zap.String("component", "database"), zap.String("path", cfg.Database.Path))
	return definition.Merge(dir, defs), db, defs, nil
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	source, db, defStore, err := openDefinitions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	bus := event.NewBus(logger.Named("event"))
	engine := heartbeat.NewEngine(
		monitor.DefaultFactories(monitor.NewHTTPClient(), nil),
		cfg.Heartbeat.BatchSize,
		logger.Named("engine"),
		heartbeat.WithEvents(bus),
	)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	meters, err := telemetry.New(ctx, telemetry.Config{
		Exporter:     cfg.Metrics.Exporter,
		ServiceName:  cfg.Metrics.ServiceName,
		Version:      version.Short(),
		OTLPEndpoint: cfg.Metrics.OTLPEndpoint,
	}, telemetry.WithRegisterer(promReg))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meters.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	gauge, err := monitor.RegisterGauge(meters.Meter(), engine.Registry(), cfg.Metrics.Name, cfg.Metrics.Description)
	if err != nil {
		return err
	}
	defer func() { _ = gauge.Unregister() }()

	var tokens *auth.TokenService
	if cfg.Auth.Enabled() {
		tokens = auth.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	} else {
		logger.Warn("auth.jwt_secret not set, monitor write API is unauthenticated", zap.String("component", "auth"))
	}

	var persisted heartbeat.DefinitionStore
	if defStore != nil {
		persisted = defStore
	}
	api := heartbeat.NewHandler(engine, persisted, bus, auth.RequireToken(tokens), logger.Named("api"))
	stream := ws.NewHandler(bus, logger.Named("ws"))
	defer stream.Close()

	srv := server.New(cfg.Server, logger.Named("server"), readiness(engine, db), server.NewMetrics(promReg), api, stream)
	runner := heartbeat.NewRunner(engine, source, cfg.Heartbeat.TickInterval, logger.Named("runner"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("heartbeat ready",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("batch_size", cfg.Heartbeat.BatchSize),
		zap.Duration("tick_interval", cfg.Heartbeat.TickInterval),
		zap.String("version", version.Short()),
	)
	return g.Wait()
}

// readiness reports ready once the engine has been set up and, when
// persistence is enabled, the database answers.
func readiness(engine *heartbeat.Engine, db *store.SQLiteStore) server.ReadinessChecker {
	return func(ctx context.Context) error {
		switch engine.State() {
		case heartbeat.StateReady, heartbeat.StateTicking:
		default:
			return fmt.Errorf("engine is %s", engine.State())
		}
		if db != nil {
			if err := db.Ping(ctx); err != nil {
				return errors.Join(errors.New("database unreachable"), err)
			}
		}
		return nil
	}
}
