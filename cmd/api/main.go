package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"learnhub/internal/api"
	"learnhub/internal/booking"
	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/domain"
	"learnhub/internal/events"
	"learnhub/internal/logging"
	"learnhub/internal/metrics"
	"learnhub/internal/notify"
	"learnhub/internal/repository"
	"learnhub/internal/service"
	"learnhub/internal/worker"

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

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, only admin routes require a token")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}
	cache := initCache(redisClient, &logger)

	startMetrics(ctx, cfg, &logger)

	bus := events.NewEventBus()
	subscribeEvents(bus, &logger)

	var wg sync.WaitGroup
	goRun := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	mailer := notify.NewMailer(cfg.Notifications, logging.Component(&logger, "mailer"))
	notifications := worker.NewNotificationWorker(db, mailer, redisClient, cfg.Notifications.Worker, logging.Component(&logger, "notifications"))
	goRun(notifications.Start)

	reminder := worker.NewLinkReminder(
		db,
		notifications,
		booking.NewGate(cfg.Booking.LinkLeadTime),
		cfg.Booking.Location(),
		cfg.Booking.DefaultSessionLength,
		cfg.Booking.ReminderInterval,
		logging.Component(&logger, "reminder"),
	)
	goRun(reminder.Start)

	if cfg.Backup.Enabled {
		goRun(database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup")).Start)
	}

	pricing := service.NewPricingService(db, db, cache, bus, logging.Component(&logger, "pricing"))
	services := api.Services{
		Slots:    service.NewSlotService(db, pricing, cfg.Booking.Location(), logging.Component(&logger, "slots")),
		Bookings: service.NewBookingService(db, db, cache, bus, notifications, cfg.Booking, logging.Component(&logger, "bookings")),
		Pricing:  pricing,
		Orders:   service.NewOrderService(db, pricing, bus, logging.Component(&logger, "orders")),
		Catalog:  service.NewCatalogService(db, logging.Component(&logger, "catalog")),
		Health:   db.PingContext,
	}

	grpcServer, err := api.NewGRPCServer(&cfg.API, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}

	httpServer := api.NewHTTPServer(cfg.API, cfg.Exports, services, &logger)

	err = startServers(ctx, grpcServer, httpServer, cfg, &logger)
	wg.Wait()
	return err
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

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	dirs := []string{cfg.Exports.Path}
	if cfg.Backup.Enabled {
		dirs = append(dirs, cfg.Backup.StoragePath)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error().Err(err).Str("dir", dir).Msg("create directory")
			return err
		}
	}
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(client)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initCache(client *redis.Client, logger *zerolog.Logger) domain.Cache {
	if client == nil {
		return repository.NewMemoryCache()
	}
	return repository.NewFailoverCache(
		repository.NewRedisCache(client),
		repository.NewMemoryCache(),
		logging.Component(logger, "cache"),
	)
}

// subscribeEvents records domain events in the audit log.
func subscribeEvents(bus *events.EventBus, logger *zerolog.Logger) {
	audit := logging.Component(logger, "events")

	handler := func(ev *events.Event) error {
		var fields map[string]interface{}
		if err := json.Unmarshal(ev.Payload, &fields); err != nil {
			audit.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		audit.Info().Str("event", ev.Type).Fields(fields).Msg("domain event")
		return nil
	}

	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingConfirmed,
		events.EventBookingCancelled,
		events.EventBookingCompleted,
		events.EventFlashSaleActivated,
		events.EventOrderCreated,
	} {
		bus.Subscribe(eventType, handler)
	}
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

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	go func() {
		if err := grpcServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Str("grpc_addr", grpcServer.Addr()).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	_ = httpServer.Shutdown(shutdownCtx)

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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
