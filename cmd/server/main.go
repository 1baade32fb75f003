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

	webAdapter "stockmaster/internal/adapters/web"
	"stockmaster/internal/app"
	"stockmaster/internal/config"
	"stockmaster/internal/core"
	"stockmaster/internal/db"
	"stockmaster/internal/events"
	"stockmaster/internal/logging"
	"stockmaster/internal/metrics"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolOptions{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	m := metrics.New()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaEnabled() {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.Info("publishing stock events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("event publisher close", zap.Error(err))
		}
	}()

	svc := app.NewFromPool(pool, core.Options{
		LockTimeout:           cfg.Database.LockTimeout,
		MaxValidationAttempts: cfg.Validation.MaxAttempts,
		ReservationTTL:        cfg.Reservations.DefaultTTL,
	}, app.Deps{Publisher: publisher, Metrics: m, Logger: logger})

	sweeperDone := app.NewReservationSweeper(svc, cfg.Reservations.SweepInterval, logger).Start(ctx)

	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: webAdapter.NewHandler(svc, webAdapter.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			JWTSecret:      cfg.JWT.Secret,
			TokenTTL:       cfg.JWT.Expiration,
			Logger:         logger,
			Metrics:        m,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server", zap.Error(err))
		}
		stop()
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	<-sweeperDone
}
