package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/smartenergy/aidaily/internal/config"
	"github.com/smartenergy/aidaily/internal/delivery/http"
	"github.com/smartenergy/aidaily/internal/domain"
	"github.com/smartenergy/aidaily/internal/logging"
	"github.com/smartenergy/aidaily/internal/metrics"
	"github.com/smartenergy/aidaily/internal/notify"
	"github.com/smartenergy/aidaily/internal/repository/memory"
	"github.com/smartenergy/aidaily/internal/repository/postgres"
	"github.com/smartenergy/aidaily/internal/service"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logging.New(cfg.Log.Level, cfg.Log.Format, "aidaily")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// Store: PostgreSQL when reachable, seeded in-memory demo store otherwise
	store, closeStore := openStore(cfg, zl)
	defer closeStore()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Notifications
	publisher := openPublisher(cfg, zl)
	defer func() {
		if err := publisher.Close(); err != nil {
			zl.Warn("Failed to close publisher", zap.Error(err))
		}
	}()

	// Dependency Injection: Services
	exec := service.NewExecutor(store, cfg.Rules.Location, m, zl)
	chargeSvc := service.NewESSChargeService(exec)
	batchSvc := service.NewAggregateService(
		service.NewSolarPowerService(exec),
		chargeSvc,
		service.NewPowerUsageService(exec, cfg.Rules.PowerUsageMappingEnabled),
		service.NewESSPredictService(exec, cfg.Rules.ESSCapacity),
		publisher,
		zl,
	)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "AI Daily Aggregation API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, http.NewHandler(batchSvc, chargeSvc, store, zl), reg)

	// Graceful shutdown
	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			zl.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}
	batchSvc.WaitBackground()
	zl.Info("Server exited gracefully")
}

func openStore(cfg *config.Config, zl *zap.Logger) (domain.Store, func()) {
	if cfg.Database.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := newPool(ctx, cfg)
		if err == nil {
			db := stdlib.OpenDBFromPool(pool)
			zl.Info("Connected to PostgreSQL")
			store := postgres.NewStore(db, postgres.DefaultSchema(cfg.Tables), cfg.Rules.Location, zl)
			return store, func() { closeDB(db, pool, zl) }
		}
		zl.Warn("Could not connect to database", zap.Error(err))
	}

	zl.Warn("Running with in-memory demo data only")
	store := memory.New(cfg.Rules.Location)
	today := domain.DayOf(time.Now().In(cfg.Rules.Location))
	store.SeedDemo(today)
	return store, func() {}
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func closeDB(db *sql.DB, pool *pgxpool.Pool, zl *zap.Logger) {
	if err := db.Close(); err != nil {
		zl.Warn("Failed to close database handle", zap.Error(err))
	}
	pool.Close()
}

func openPublisher(cfg *config.Config, zl *zap.Logger) notify.Publisher {
	switch cfg.Notify.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Notify.Redis.Addr,
			Password: cfg.Notify.Redis.Password,
			DB:       cfg.Notify.Redis.DB,
		})
		zl.Info("Publishing batch events to Redis stream",
			zap.String("addr", cfg.Notify.Redis.Addr),
			zap.String("stream", cfg.Notify.Redis.Stream),
		)
		return notify.NewRedisPublisher(client, cfg.Notify.Redis.Stream)
	case "kafka":
		zl.Info("Publishing batch events to Kafka",
			zap.Strings("brokers", cfg.Notify.Kafka.Brokers),
			zap.String("topic", cfg.Notify.Kafka.Topic),
		)
		return notify.NewKafkaPublisher(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic)
	default:
		return notify.Nop{}
	}
}
