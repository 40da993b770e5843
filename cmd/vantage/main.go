package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vantage/internal/alerting"
	"vantage/internal/config"
	"vantage/internal/events"
	"vantage/internal/globalping"
	"vantage/internal/httpapi"
	"vantage/internal/logging"
	"vantage/internal/notify"
	"vantage/internal/repo"
	"vantage/internal/repo/memory"
	"vantage/internal/repo/sqlite"
	"vantage/internal/scheduler"
)

// store bundles the three repository ports one backend implements.
type store interface {
	repo.MonitorStore
	repo.MeasurementStore
	repo.AlertStore
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db store
	if cfg.DatabasePath != "" {
		s, err := sqlite.New(ctx, cfg.DatabasePath)
		if err != nil {
			logger.Fatal("sqlite_open_error", zap.String("path", cfg.DatabasePath), zap.Error(err))
		}
		defer s.Close()
		db = s
		logger.Info("store_sqlite", zap.String("path", cfg.DatabasePath))
	} else {
		db = memory.New()
		logger.Info("store_memory")
	}

	bus := events.NewBus(64)
	prober := globalping.NewClient(cfg.GlobalpingURL, logger)
	engine := alerting.NewEngine(db, notify.NewWebhook(), logger)
	executor := scheduler.NewExecutor(logger, prober, db, db, engine, bus)
	sched := scheduler.New(logger, db, executor, cfg.Tick(), cfg.MaxConcurrentChecks)

	api := httpapi.NewServer(logger, db, db, db, bus, executor)
	api.RatePerMin = cfg.RateLimitPerMin
	api.RateBurst = cfg.RateLimitBurst

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_serve_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
	<-schedDone
	logger.Info("stopped")
}
