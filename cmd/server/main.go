package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"demoki/internal/api"
	"demoki/internal/chat"
	"demoki/internal/config"
	"demoki/internal/engine"
	"demoki/internal/events"
	"demoki/internal/logging"
	"demoki/internal/metrics"
	"demoki/internal/repository"
	"demoki/internal/workbook"
	"demoki/internal/worker"

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

	backend, err := initBackend(cfg)
	if err != nil {
		return err
	}
	store := workbook.NewManager(backend, cfg.Workbook, cfg.Backup.StoragePath, logger)

	eventBus := events.NewEventBus()
	subscribeEventLog(eventBus, logger)

	eng := engine.NewEngine(store, eventBus, logger)
	machine := chat.NewMachine(eng, logger)

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	limiter := initRateLimiter(cfg, redisClient)

	httpServer := api.NewServer(cfg.Server, machine, limiter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, logger)

	backupService := worker.NewBackupService(cfg.Workbook.Path, cfg.Backup, logger)
	go backupService.Start(ctx)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().
		Str("backend", backend.Name()).
		Int("http_port", cfg.Server.Port).
		Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("server stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, &logger, closer, nil
}

func initBackend(cfg *config.Config) (workbook.Backend, error) {
	switch cfg.Workbook.Backend {
	case config.BackendSheets:
		return workbook.NewSheetsBackend(cfg.Workbook.CredentialsFile), nil
	case config.BackendFile, "":
		return workbook.NewFileBackend(), nil
	default:
		return nil, fmt.Errorf("unknown workbook backend: %q", cfg.Workbook.Backend)
	}
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initRateLimiter(cfg *config.Config, redisClient *redis.Client) repository.RateLimiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	if redisClient != nil {
		return repository.NewRedisRateLimiter(redisClient, cfg.RateLimit)
	}
	return repository.NewMemoryRateLimiter(cfg.RateLimit)
}

func subscribeEventLog(bus *events.EventBus, logger *zerolog.Logger) {
	handler := func(event *events.Event) error {
		logger.Info().
			Str("event", event.Type).
			RawJSON("payload", event.Payload).
			Msg("reservation event")
		return nil
	}
	bus.Subscribe(events.EventReservationCreated, handler)
	bus.Subscribe(events.EventReservationCancelled, handler)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
