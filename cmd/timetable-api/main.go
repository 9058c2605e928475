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

	_ "github.com/campushq/timetable-api/api/swagger"
	"github.com/campushq/timetable-api/internal/handler"
	"github.com/campushq/timetable-api/internal/middleware"
	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/internal/repository"
	"github.com/campushq/timetable-api/internal/service"
	"github.com/campushq/timetable-api/pkg/cache"
	"github.com/campushq/timetable-api/pkg/config"
	"github.com/campushq/timetable-api/pkg/database"
	"github.com/campushq/timetable-api/pkg/logger"
	corsmiddleware "github.com/campushq/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushq/timetable-api/pkg/middleware/requestid"
)

// @title Timetable API
// @version 1.0.0
// @description Timetable generation and conflict-resolution engine
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

	if err := database.RunMigrations(db); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Cache.TTL, logr, false)
	}

	validate := validator.New()

	timetableRepo := repository.NewTimetableRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	entryRepo := repository.NewEntryRepository(db)
	substitutionRepo := repository.NewSubstitutionRepository(db)
	conflictRepo := repository.NewConflictRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	generatorSvc := service.NewGeneratorService(
		catalogRepo, catalogRepo, catalogRepo,
		timetableRepo, entryRepo, conflictRepo,
		db, metricsSvc, validate, logr,
		service.GeneratorConfig{
			MaxIterations: cfg.Generator.MaxIterations,
			WorkingDays:   cfg.Generator.WorkingDays,
		},
	)
	timetableSvc := service.NewTimetableService(timetableRepo, versionRepo, entryRepo, entryRepo, db, cacheSvc, validate, logr)
	entrySvc := service.NewEntryService(entryRepo, catalogRepo, timetableRepo, cacheSvc, validate, logr)
	substitutionSvc := service.NewSubstitutionService(substitutionRepo, entryRepo, catalogRepo, db, validate, logr)
	conflictSvc := service.NewConflictService(conflictRepo, logr)

	timetableHandler := handler.NewTimetableHandler(generatorSvc, timetableSvc)
	entryHandler := handler.NewEntryHandler(entrySvc, cacheSvc)
	substitutionHandler := handler.NewSubstitutionHandler(substitutionSvc)
	conflictHandler := handler.NewConflictHandler(conflictSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	scheduler := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleCoordinator)

	timetables := api.Group("/timetables")
	{
		timetables.POST("/generate", scheduler, timetableHandler.Generate)
		timetables.GET("", timetableHandler.List)
		timetables.GET("/:id", timetableHandler.Get)
		timetables.GET("/:id/validate", timetableHandler.Validate)
		timetables.POST("/:id/publish", scheduler, timetableHandler.Publish)
		timetables.POST("/:id/restore/:versionId", scheduler, timetableHandler.Restore)
		timetables.GET("/:id/versions", timetableHandler.ListVersions)
		timetables.GET("/:id/versions/:versionId", timetableHandler.GetVersion)
		timetables.GET("/:id/entries", entryHandler.List)
		timetables.GET("/:id/conflicts", conflictHandler.List)
		timetables.POST("/:id/teacher-absences", scheduler, substitutionHandler.MarkTeacherAbsent)
		timetables.GET("/:id/available-teachers", substitutionHandler.AvailableTeachers)
	}

	entries := api.Group("/entries")
	{
		entries.POST("", scheduler, entryHandler.Create)
		entries.PUT("/:id", scheduler, entryHandler.Update)
		entries.DELETE("/:id", scheduler, entryHandler.Delete)
	}

	substitutions := api.Group("/substitutions")
	{
		substitutions.POST("", scheduler, substitutionHandler.Create)
		substitutions.POST("/bulk", scheduler, substitutionHandler.BulkCreate)
		substitutions.GET("/active", substitutionHandler.ListActive)
		substitutions.POST("/:id/cancel", scheduler, substitutionHandler.Cancel)
	}

	conflicts := api.Group("/conflicts")
	{
		conflicts.POST("/:id/resolve", scheduler, conflictHandler.Resolve)
	}

	api.GET("/system/metrics", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin), metricsHandler.System)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
