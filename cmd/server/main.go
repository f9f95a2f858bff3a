package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	httpadapter "bloodlink/internal/adapters/http"
	pg "bloodlink/internal/adapters/postgres"
	"bloodlink/internal/adapters/rediscache"
	"bloodlink/internal/config"
	"bloodlink/internal/ports"
	"bloodlink/internal/services/eligibility"
	"bloodlink/internal/services/fulfillment"
	"bloodlink/internal/services/matching"
	"bloodlink/internal/services/reporting"
	"bloodlink/internal/services/shortage"
	"bloodlink/internal/services/similarity"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	if cfg.Migrate {
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	var cache ports.AnalyticsCache
	if cfg.RedisAddr != "" {
		rc, err := rediscache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal("redis connect", zap.Error(err))
		}
		defer rc.Close()
		cache = rc
		logger.Info("analytics cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	eligibilitySvc := eligibility.New(db, logger)
	fulfillmentSvc := fulfillment.New(db, db, db, logger)
	shortageSvc := shortage.New(db, db, db, cache, logger)
	matchingSvc := matching.New(db, db, db, logger)
	similaritySvc := similarity.New(db, db, cache, logger)
	reportingSvc := reporting.New(db, db, db, logger)

	srv := httpadapter.New(eligibilitySvc, fulfillmentSvc, shortageSvc, matchingSvc, similaritySvc, reportingSvc, logger)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	logger.Info("listening", zap.String("addr", cfg.ListenAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		logger.Fatal("server", zap.Error(err))
	}
}

func newLogger(cfg config.Config) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Env == "development" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
