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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/classly/scheduling-engine/api/swagger"
	"github.com/classly/scheduling-engine/internal/handler"
	"github.com/classly/scheduling-engine/internal/middleware"
	"github.com/classly/scheduling-engine/internal/models"
	"github.com/classly/scheduling-engine/internal/repository"
	"github.com/classly/scheduling-engine/internal/service"
	rediscache "github.com/classly/scheduling-engine/pkg/cache"
	"github.com/classly/scheduling-engine/pkg/config"
	"github.com/classly/scheduling-engine/pkg/database"
	"github.com/classly/scheduling-engine/pkg/logger"
	corsmiddleware "github.com/classly/scheduling-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/classly/scheduling-engine/pkg/middleware/requestid"
)

// @title Class Scheduling Engine
// @version 0.1.0
// @description Automatic class scheduling, conflict resolution and 1-on-1 matching
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	bookingRepo := repository.NewBookingRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	contentRepo := repository.NewContentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)
	catalogSvc := service.NewContentCatalogService(contentRepo, cacheSvc, logr)

	notificationSvc := service.NewNotificationService(cfg.Notifications, service.LogSink{Logger: logr}, logr)

	constraintSvc := service.NewConstraintService(logr)
	scoringSvc := service.NewScoringService(logr)
	detector := service.NewConflictDetector(logr, metricsSvc)
	resolver := service.NewConflictResolver(logr)

	orchestrator := service.NewOrchestratorService(
		cfg.Engine,
		progressRepo,
		availabilityRepo,
		bookingRepo,
		catalogSvc,
		constraintSvc,
		scoringSvc,
		detector,
		resolver,
		notificationSvc,
		metricsSvc,
		logr,
	)
	defer orchestrator.Close()

	matcher := service.NewMatcherService(
		cfg.Matching,
		cfg.Engine,
		progressRepo,
		availabilityRepo,
		bookingRepo,
		catalogSvc,
		constraintSvc,
		scoringSvc,
		notificationSvc,
		logr,
	)

	runners := service.DefaultComponentRunners(catalogSvc, cacheSvc, bookingRepo, availabilityRepo, detector, notificationSvc, logr)
	dailyUpdate := service.NewDailyUpdateService(runners, notificationSvc, logr)

	validate := validator.New()
	schedulingHandler := handler.NewSchedulingHandler(orchestrator, validate)
	matchingHandler := handler.NewMatchingHandler(matcher, validate)
	dailyUpdateHandler := handler.NewDailyUpdateHandler(dailyUpdate, cfg.DailyUpdate, validate)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.Auth(cfg.JWT.Secret))
	{
		scheduling := api.Group("/scheduling")
		scheduling.POST("/requests", schedulingHandler.Submit)
		scheduling.POST("/requests/async", schedulingHandler.SubmitAsync)
		scheduling.GET("/requests/:id", schedulingHandler.Status)
		scheduling.DELETE("/requests/:id", schedulingHandler.Cancel)

		api.POST("/matching/one-on-one", matchingHandler.Match)

		admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		admin.POST("/daily-update", dailyUpdateHandler.Run)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server shutdown incomplete", zap.Error(err))
	}
}
