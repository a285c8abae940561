package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/classboard/internal/adapters/http/api"
	"github.com/okian/classboard/internal/adapters/http/swagger"
	app "github.com/okian/classboard/internal/app"
	"github.com/okian/classboard/internal/config"
	"github.com/okian/classboard/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat, Level: cfg.LogLevel}); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "classboard exited", logger.Error(err))
		os.Exit(1)
	}
}

// serviceOptions maps configuration onto service options.
func serviceOptions(cfg *config.Config) []app.Option {
	return []app.Option{
		app.WithLogger(logger.Named("service")),
		app.WithServiceName(cfg.ServiceName),
		app.WithStorage(cfg.StorageDriver, cfg.DataDir, cfg.SQLitePath),
		app.WithCheckpointDir(cfg.CheckpointDir),
		app.WithArchiveDir(cfg.ArchiveDir),
		app.WithRosterFile(cfg.RosterFile),
		app.WithSchedules(cfg.BackupSchedule, cfg.ArchiveSchedule),
		app.WithCheckpointRetention(time.Duration(cfg.CheckpointRetentionDays) * 24 * time.Hour),
		app.WithDefaultDailyLimit(cfg.DefaultMaxSubmissions),
		app.WithArchiveQueue(cfg.ArchiveQueueSize, cfg.ArchiveWorkers),
		app.WithSigningSecret(cfg.SigningSecret),
	}
}

// newRouter registers the docs and business routes.
func newRouter(ctx context.Context, svc *app.Service) *mux.Router {
	r := mux.NewRouter()
	swagger.Register(ctx, r)
	api.NewServer(svc, svc).Register(ctx, r)
	return r
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	svc := app.New(serviceOptions(cfg)...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		svc.Stop(stopCtx)
	}()

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc),
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

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
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

// startServiceMetricsUpdater refreshes gauges derived from service stats.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.GetStats()
		}
	}
}
