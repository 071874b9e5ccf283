package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/opencourse/media-api/api/swagger"
	"github.com/opencourse/media-api/internal/handler"
	"github.com/opencourse/media-api/internal/middleware"
	"github.com/opencourse/media-api/internal/models"
	"github.com/opencourse/media-api/internal/repository"
	"github.com/opencourse/media-api/internal/service"
	"github.com/opencourse/media-api/pkg/cache"
	"github.com/opencourse/media-api/pkg/config"
	"github.com/opencourse/media-api/pkg/database"
	"github.com/opencourse/media-api/pkg/jobs"
	"github.com/opencourse/media-api/pkg/logger"
	corsmiddleware "github.com/opencourse/media-api/pkg/middleware/cors"
	reqidmiddleware "github.com/opencourse/media-api/pkg/middleware/requestid"
	"github.com/opencourse/media-api/pkg/storage"
)

// @title OpenCourse Media API
// @version 1.0.0
// @description Media storage and delivery service for the OpenCourse platform
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.EnsureSchema(context.Background(), db); err != nil {
		logr.Sugar().Fatalw("failed to ensure database schema", "error", err)
	}

	layout, err := storage.NewLayout(cfg.Storage.Root, cfg.Storage.PublicBaseURL)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare storage layout", "error", err)
	}

	fileRepo := repository.NewFileRepository(db)

	var fileCache *repository.FileCache
	if cfg.Cache.Enabled {
		redisClient, redisErr := cache.NewRedis(cfg.Redis)
		if redisErr != nil {
			logr.Sugar().Warnw("redis unavailable, metadata cache disabled", "error", redisErr)
		} else {
			defer redisClient.Close() //nolint:errcheck
			fileCache = repository.NewFileCache(redisClient, cfg.Cache.TTL, logr)
		}
	}

	metrics := service.NewMetricsService()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry := jobs.NewQueue("file-telemetry", func(jobCtx context.Context, job jobs.Job) error {
		return fileRepo.RecordAccess(jobCtx, job.ID, time.Now().UTC())
	}, jobs.QueueConfig{
		Workers: cfg.Storage.TelemetryWorkers,
		Logger:  logr,
	})
	telemetry.Start(ctx)
	defer telemetry.Stop()

	signer := storage.NewTokenSigner(cfg.Storage.TokenSecret, cfg.Storage.TokenTTL)
	validator := service.NewIngestValidator(cfg.Storage)
	authSvc := service.NewAuthService(cfg.JWT.Secret)

	fileSvc := service.NewFileService(fileRepo, layout, signer, validator, fileCache, telemetry, metrics, logr, service.FileServiceConfig{
		ChecksumAlgorithm: cfg.Storage.ChecksumAlgorithm,
		StreamChunkSize:   cfg.Storage.StreamChunkSize,
	})
	cleanupSvc := service.NewCleanupService(fileRepo, layout, fileCache, metrics, logr, service.CleanupSettings{
		OrphanGrace: cfg.Cleanup.OrphanGrace,
		TempMaxAge:  cfg.Cleanup.TempMaxAge,
	})

	fileHandler := handler.NewFileHandler(fileSvc, layout)
	cleanupHandler := handler.NewCleanupHandler(cleanupSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	files := api.Group("/files")
	files.GET("", middleware.JWT(authSvc), fileHandler.List)
	files.POST("", middleware.JWT(authSvc), fileHandler.Upload)
	files.POST("/batch", middleware.JWT(authSvc), fileHandler.UploadBatch)
	files.GET("/:id", middleware.OptionalJWT(authSvc), fileHandler.Get)
	files.GET("/:id/stream", middleware.OptionalJWT(authSvc), fileHandler.Stream)
	files.GET("/:id/download", middleware.OptionalJWT(authSvc), fileHandler.Download)
	files.PATCH("/:id/visibility", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), fileHandler.UpdateVisibility)
	files.DELETE("/:id", middleware.JWT(authSvc), fileHandler.Delete)

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.POST("/cleanup", cleanupHandler.Run)
	admin.GET("/files/export", fileHandler.Export)

	if cfg.Cleanup.Enabled {
		go runCleanupLoop(ctx, cleanupSvc, cfg.Cleanup.Interval)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}

func runCleanupLoop(ctx context.Context, svc *service.CleanupService, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.Sweep(ctx)
		}
	}
}
