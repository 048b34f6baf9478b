package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campsite/internal/api"
	"campsite/internal/config"
	"campsite/internal/database"
	"campsite/internal/domain"
	"campsite/internal/events"
	"campsite/internal/logging"
	"campsite/internal/metrics"
	"campsite/internal/repository"
	"campsite/internal/service"
	"campsite/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Database, &logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return err
	}
	defer store.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}

	bus := events.NewEventBus()
	policy := service.NewPolicyValidator(cfg.Policy)
	reservations := service.NewReservationService(store, policy, bus, logging.Component(&logger, "reservations"))

	cached := service.NewCachedAvailability(reservations, initCache(cfg, redisClient, &logger), logging.Component(&logger, "availability"))
	cached.Subscribe(bus)

	if publisher := initBroadcast(ctx, cfg, bus, &logger); publisher != nil {
		defer publisher.Close()
	}

	if db, ok := store.(*database.DB); ok {
		backup := database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup"))
		go backup.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	var pinger api.Pinger
	if p, ok := store.(api.Pinger); ok {
		pinger = p
	}
	httpServer := api.NewHTTPServer(cfg.API, reservations, cached, policy, pinger, logging.Component(&logger, "http"))

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-memory cache")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.AvailabilityCache {
	ttl := time.Duration(cfg.Redis.CacheTTL) * time.Second
	memory := repository.NewMemoryAvailabilityCache(ttl)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverAvailabilityCache(
		repository.NewRedisAvailabilityCache(redisClient, ttl),
		memory,
		logging.Component(logger, "cache"),
	)
}

func initBroadcast(ctx context.Context, cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) *worker.AMQPPublisher {
	if !cfg.RabbitMQ.Enabled {
		return nil
	}

	publisher, err := worker.DialAMQP(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq connection failed, continuing without broadcast")
		return nil
	}

	w := worker.NewBroadcastWorker(publisher, worker.DefaultRetryPolicy, logging.Component(logger, "broadcast"))
	w.Subscribe(bus)
	go w.Start(ctx)

	logger.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("rabbitmq broadcast enabled")
	return publisher
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
