package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"task-tracker-api/internal/cache"
	"task-tracker-api/internal/config"
	"task-tracker-api/internal/database"
	"task-tracker-api/internal/events"
	"task-tracker-api/internal/handlers"
	"task-tracker-api/internal/logging"
	"task-tracker-api/internal/models"
	"task-tracker-api/internal/realtime"
	"task-tracker-api/internal/routes"
	"task-tracker-api/internal/service"
	"task-tracker-api/internal/store"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		Production: cfg.IsProduction(),
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Init database
	db, err := database.Open(database.Options{
		Driver: cfg.DBDriver,
		DSN:    cfg.DBDSN,
		Logger: logging.GormLogger(logger, cfg.DBLogLevel),
	})
	if err != nil {
		logger.Fatalw("Failed to open database", "driver", cfg.DBDriver, "error", err)
	}
	logger.Infow("Database ready", "driver", cfg.DBDriver)
	taskStore := store.NewTaskStore(db)

	shutdownOps := map[string]gfshutdown.Operation{}
	checks := map[string]handlers.Checker{"database": taskStore.Ping}

	// Read-through cache: redis when configured, in-process otherwise
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	var taskCache cache.Cache[int64, models.Task]
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		redisCache := cache.NewRedisCache[int64, models.Task](rdb, "task:")
		if err := redisCache.Ping(context.Background()); err != nil {
			logger.Warnw("Redis not reachable at startup", "addr", cfg.RedisAddr, "error", err)
		}
		taskCache = redisCache
		checks["redis"] = redisCache.Ping
		shutdownOps["redis"] = func(context.Context) error { return rdb.Close() }
		logger.Infow("Using redis task cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	} else {
		memCache := cache.NewSimpleCache[int64, models.Task]()
		go memCache.RunJanitor(janitorCtx, time.Minute)
		taskCache = memCache
		logger.Infow("Using in-process task cache", "ttl", cfg.CacheTTL)
	}

	// Task events: websocket clients always, NATS when configured
	hub := realtime.NewHub()
	publishers := events.Multi{hub}
	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logger.Fatalw("Failed to connect to NATS", "url", cfg.NATSURL, "error", err)
		}
		natsPublisher := events.NewNATSPublisher(nc, cfg.NATSSubjectPrefix)
		publishers = append(publishers, natsPublisher)
		shutdownOps["nats"] = natsPublisher.Close
		logger.Infow("Publishing task events to NATS", "url", cfg.NATSURL, "prefix", cfg.NATSSubjectPrefix)
	}

	taskService := service.NewTaskService(taskStore,
		service.WithCache(taskCache, cfg.CacheTTL),
		service.WithPublisher(publishers),
		service.WithLogger(logger),
	)

	// Setup the routes (procedures, REST aliases, health and websocket)
	ginRoutes := routes.SetupRoutes(routes.Deps{
		Tasks:       handlers.NewTaskHandler(taskService, logger),
		Hub:         hub,
		Checks:      checks,
		Logger:      logger,
		CORSOrigins: cfg.CORSAllowOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           ginRoutes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The database is closed only after in-flight requests have drained
	shutdownOps["http"] = func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		err := srv.Shutdown(ctx)
		_ = hub.CloseAll(ctx)
		stopJanitor()
		return errors.Join(err, database.Close(db))
	}

	go func() {
		logger.Infow("Server starting", "addr", srv.Addr, "env", cfg.Environment)
		logger.Info("Endpoints: /trpc/:procedure, /api/tasks, /ws, /health, /readyz")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Failed to start server", "error", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, shutdownOps)
	exitCode := <-wait
	logger.Infow("Server exited", "code", exitCode)
	_ = logger.Sync()
	os.Exit(exitCode)
}
