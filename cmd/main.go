package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/asyncrace/internal/adapters/http/api"
	"github.com/okian/asyncrace/internal/adapters/http/swagger"
	"github.com/okian/asyncrace/internal/adapters/repository"
	service "github.com/okian/asyncrace/internal/app"
	"github.com/okian/asyncrace/internal/config"
	"github.com/okian/asyncrace/internal/domain/engine"
	"github.com/okian/asyncrace/pkg/logger"
	"github.com/okian/asyncrace/pkg/metrics"
)

// HTTP server timeout constants. Drives hold a request open for the whole
// simulated run, so the write timeout is generous.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel)); err != nil {
		logger.Get().Warn(ctx, "invalid logging config; keeping text at info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
	}
	log := logger.Get()
	configureMetrics(cfg)

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "track server failed", logger.Error(err))
		os.Exit(1)
	}
}

// run serves the track backend until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	db, err := repository.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error(ctx, "closing store failed", logger.Error(err))
		}
	}()

	svc := newService(cfg, db)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(ctx, "service shutdown failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newService wires the stores and the engine simulator into the race service.
func newService(cfg *config.Config, db *repository.DB) *service.Service {
	garage := repository.NewGarageStore(db)
	winners := repository.NewWinnerStore(db)
	sim := engine.NewSimulator(
		engine.WithDistance(cfg.EngineDistance),
		engine.WithVelocityRange(cfg.EngineMinVelocity, cfg.EngineMaxVelocity),
		engine.WithBreakChance(cfg.EngineBreakChance),
		engine.WithTimeScale(cfg.EngineTimeScale),
		engine.WithSeed(time.Now().UnixNano()),
		engine.WithLookup(func(ctx context.Context, id int) error {
			_, err := garage.GetVehicle(ctx, id)
			return err
		}),
	)
	return service.New(garage, winners, sim,
		service.WithWorkerCount(cfg.LedgerWorkerCount),
		service.WithQueueSize(cfg.LedgerQueueSize),
		service.WithGaragePageSize(cfg.GaragePageSize),
		service.WithGeneratorSeed(time.Now().UnixNano()),
	)
}

func newRouter(cfg *config.Config, svc *service.Service) chi.Router {
	r := api.NewServer(svc, svc, api.WithGenerateCount(cfg.GenerateCount)).Routes()
	swagger.Register(r)
	return r
}

// configureMetrics applies the metrics section of cfg to the global manager.
func configureMetrics(cfg *config.Config) {
	metrics.Configure(
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(time.Duration(cfg.MetricsRefreshMS)*time.Millisecond),
	)
}

func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}

// startServiceMetricsUpdater polls GetStats, which refreshes the queue gauge.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := svc.GetStats()
			if workers, ok := stats["workerCount"].(int); ok {
				metrics.UpdateWorkerCount(workers)
			}
		}
	}
}
