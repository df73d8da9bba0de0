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

	"staybook/internal/api"
	"staybook/internal/auth"
	"staybook/internal/booking"
	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/google"
	"staybook/internal/logging"
	"staybook/internal/metrics"
	"staybook/internal/models"
	"staybook/internal/notify"
	"staybook/internal/repository"
	"staybook/internal/service"
	"staybook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inventory := service.NewInventoryService(db, &logger)
	if err := seedInventory(ctx, inventory, &logger); err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	gate, err := auth.NewGate(cfg.Auth)
	if err != nil {
		return fmt.Errorf("init auth gate: %w", err)
	}

	engine := booking.NewEngine(db, initLocker(cfg, redisClient, &logger), cfg.Booking, &logger)

	eventBus := events.NewEventBus()
	initTelegram(ctx, cfg, eventBus, &logger)

	var syncWorker domain.SyncWorker
	if sheets := initGoogleSheets(ctx, cfg, &logger); sheets != nil {
		w := worker.NewSheetsWorker(db, sheets, redisClient, worker.RetryPolicyFromConfig(cfg.Sync), &logger)
		go w.Start(ctx)
		// Зеркало могли править вручную, пересобираем при старте
		if err := w.EnqueueRebuild(ctx); err != nil {
			logger.Warn().Err(err).Msg("enqueue sheet rebuild")
		}
		syncWorker = w
	}

	reservations := service.NewReservationService(engine, eventBus, syncWorker, &logger)

	svc := api.Services{
		Reservations: reservations,
		Inventory:    inventory,
		Gate:         gate,
		Ready:        db.PingContext,
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, svc, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(cfg.API, svc, &logger)

	startMetrics(ctx, cfg, &logger)

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
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

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger, database.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	return db, nil
}

// seedInventory loads accommodations and rooms from SEED_PATH. A missing
// file is not an error: inventory can be managed through the API.
func seedInventory(ctx context.Context, inventory *service.InventoryService, logger *zerolog.Logger) error {
	seedPath := os.Getenv("SEED_PATH")
	if seedPath == "" {
		seedPath = "configs/inventory.yaml"
	}
	data, err := os.ReadFile(seedPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info().Str("seed_path", seedPath).Msg("no inventory seed file")
			return nil
		}
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read inventory seed")
		return err
	}

	var seedConfig struct {
		Accommodations []models.AccommodationSeed `yaml:"accommodations"`
	}
	if err := yaml.Unmarshal(data, &seedConfig); err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("parse inventory seed")
		return err
	}

	accommodations, rooms, err := inventory.Seed(ctx, seedConfig.Accommodations)
	if err != nil {
		return fmt.Errorf("seed inventory: %w", err)
	}
	logger.Info().Int("accommodations", accommodations).Int("rooms", rooms).Msg("inventory seeded")
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(redisClient)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initLocker prefers the Redis lock so several API processes share it.
// Without Redis the process-local lock is used alone.
func initLocker(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.RoomLocker {
	memory := repository.NewMemoryRoomLocker()
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisRoomLocker(redisClient, cfg.Booking.LockTTL, cfg.Booking.LockWait)
	return repository.NewFailoverRoomLocker(primary, memory, logger)
}

func initTelegram(ctx context.Context, cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.AdminChatIDs) == 0 {
		return
	}

	bot, err := notify.NewTelegramBot(cfg.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}

	notifier := notify.NewTelegramNotifier(bot, cfg.Telegram.AdminChatIDs, logger)
	notifier.Subscribe(bus)
	go notifier.Start(ctx)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.ReservationSheet {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.ReservationSpreadSheetID == "" {
		return nil
	}

	sheet, err := google.NewReservationSheet(ctx,
		cfg.Google.GoogleCredentialsFile,
		cfg.Google.ReservationSpreadSheetID,
		cfg.Google.SheetName,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	sheet.StartCacheRefresh(ctx, 10*time.Minute)
	logger.Info().Str("sheet", cfg.Google.SheetName).Msg("google sheets connected")
	return sheet
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
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	event := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
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
