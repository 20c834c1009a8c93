package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/api/handlers"
	"go-feature-platform/internal/api/routes"
	"go-feature-platform/internal/config"
	"go-feature-platform/internal/models"
	"go-feature-platform/internal/repository"
	"go-feature-platform/internal/services/catalog"
	"go-feature-platform/internal/services/configs"
	"go-feature-platform/internal/services/engine"
	"go-feature-platform/internal/services/features"
	"go-feature-platform/internal/services/logs"
	"go-feature-platform/internal/services/notify"
	"go-feature-platform/internal/services/plugins"
	"go-feature-platform/internal/services/registry"
	"go-feature-platform/internal/services/scheduledtasks"
	"go-feature-platform/internal/services/scheduler"
	"go-feature-platform/internal/services/stream"
	"go-feature-platform/pkg/postgres"
	"go-feature-platform/pkg/redis"
)

func main() {
	ctxCancel, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logrusLevel, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse log level")
	}

	logger.SetLevel(logrusLevel)

	// Set Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Setup CORS
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := db.AutoMigrate(
		&models.CustomerEntity{},
		&models.CategoryEntity{},
		&models.FeatureEntity{},
		&models.ConfigEntity{},
		&models.ExecutionLogEntity{},
		&models.ExecutionLogDetailEntity{},
		&models.ScheduledTaskEntity{},
	); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database schema")
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Redis client")
	}
	defer redisClient.Close()

	// Initialize repositories
	featureRepo := repository.NewFeatureRepository(db.DB)
	configRepo := repository.NewConfigRepository(db.DB)
	customerRepo := repository.NewCustomerRepository(db.DB)
	categoryRepo := repository.NewCategoryRepository(db.DB)
	logRepo := repository.NewExecutionLogRepository(db.DB)
	taskRepo := repository.NewScheduledTaskRepository(db.DB)
	unitOfWork := repository.NewUnitOfWork(db.DB)

	// A previous crash can leave headers stuck at RUNNING; close them out
	// before accepting new runs.
	if n, err := logRepo.FailOrphanedRunning(ctxCancel, time.Now()); err != nil {
		logger.WithError(err).Error("Failed to reconcile orphaned runs")
	} else if n > 0 {
		logger.WithField("count", n).Warn("Marked orphaned RUNNING executions as FAILURE")
	}

	// Initialize plugin machinery
	metaLoader := plugins.NewMetaLoader(&cfg.Plugin, logger)
	pluginCache := plugins.NewCache(&cfg.Plugin, logger, metaLoader)
	pluginRunner := plugins.NewRunner(&cfg.Plugin, logger)

	// Initialize live channel and run-state cache
	streamRouter := stream.NewRouter(logger)
	runState := engine.NewRedisRunState(redisClient, logger)

	notifier, err := notify.NewTelegramNotifier(&cfg.Telegram, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Telegram notifier")
	}
	if notifier == nil {
		logger.Info("Telegram notifier disabled, no token or chat id configured")
	}

	// Initialize services
	executionEngine := engine.NewEngine(cfg, logger, featureRepo, configRepo, logRepo, pluginCache, pluginRunner, streamRouter, runState, notifier)
	synchronizer := registry.NewSynchronizer(cfg, logger, featureRepo, configRepo, customerRepo, unitOfWork, metaLoader, pluginCache)
	taskScheduler := scheduler.NewScheduler(logger, taskRepo, executionEngine)

	featureService := features.NewFeatureService(cfg, logger, featureRepo, configRepo, unitOfWork)
	configService := configs.NewConfigService(logger, configRepo, featureRepo)
	logService := logs.NewLogService(logger, logRepo)
	taskService := scheduledtasks.NewScheduledTaskService(logger, taskRepo, featureRepo, taskScheduler)
	catalogService := catalog.NewCatalogService(logger, customerRepo, categoryRepo, featureRepo)

	// Start background workers
	synchronizer.StartScanLoop(ctxCancel)
	if err := taskScheduler.Start(ctxCancel); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	// Initialize handlers
	featureHandler := handlers.NewFeatureHandler(featureService, executionEngine, synchronizer, logger)
	configHandler := handlers.NewConfigHandler(configService, logger)
	logHandler := handlers.NewLogHandler(logService, runState, logger)
	taskHandler := handlers.NewScheduledTaskHandler(taskService, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogService, logger)
	streamHandler := handlers.NewStreamHandler(streamRouter, logger)

	// Setup routes
	routes.SetupRoutes(router, featureHandler, configHandler, logHandler, taskHandler, catalogHandler, streamHandler)

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Stop background workers
	cancel()

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	} else {
		logger.Info("HTTP server shutdown completed successfully")
	}

	logger.Info("Server exited")
}
