package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/gradebook-sync-api/api/swagger"
	"github.com/noah-isme/gradebook-sync-api/internal/gradecalc"
	"github.com/noah-isme/gradebook-sync-api/internal/gradestate"
	"github.com/noah-isme/gradebook-sync-api/internal/handler"
	"github.com/noah-isme/gradebook-sync-api/internal/middleware"
	"github.com/noah-isme/gradebook-sync-api/internal/platform"
	"github.com/noah-isme/gradebook-sync-api/internal/repository"
	"github.com/noah-isme/gradebook-sync-api/internal/router"
	"github.com/noah-isme/gradebook-sync-api/internal/scheduler"
	"github.com/noah-isme/gradebook-sync-api/internal/service"
	"github.com/noah-isme/gradebook-sync-api/pkg/cache"
	"github.com/noah-isme/gradebook-sync-api/pkg/config"
	"github.com/noah-isme/gradebook-sync-api/pkg/database"
	"github.com/noah-isme/gradebook-sync-api/pkg/jobs"
	"github.com/noah-isme/gradebook-sync-api/pkg/logger"
)

// @title Gradebook Sync API
// @version 1.0.0
// @description Gradebook with debounced persistence and classroom platform grade sync.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, mapping cache and locks disabled", zap.Error(err))
	} else {
		redisClient = client
		defer redisClient.Close() //nolint:errcheck
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	calendar := gradecalc.NewCalendar(cfg.GradingPeriods)

	assignmentRepo := repository.NewAssignmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	tagRepo := repository.NewTagRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	store := gradestate.NewStore()
	flusher := scheduler.New(store, gradeRepo, scheduler.Config{
		Debounce:     cfg.Scheduler.Debounce,
		FlushTimeout: cfg.Scheduler.FlushTimeout,
		Logger:       logr.Named("scheduler"),
		Observer:     metrics,
	})

	platformClient := platform.NewClient(platform.Config{
		BaseURL:         cfg.Platform.BaseURL,
		Timeout:         cfg.Platform.Timeout,
		RequestsPerSec:  cfg.Platform.RequestsPerSec,
		Burst:           cfg.Platform.Burst,
		BreakerFailures: cfg.Platform.BreakerFailures,
		BreakerOpenFor:  cfg.Platform.BreakerOpenFor,
		PageSize:        cfg.Platform.RosterPageSize,
		Logger:          logr.Named("platform"),
		Observer:        metrics,
	}, platform.StaticToken(cfg.Platform.AccessToken))

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Mapping.CacheTTL, logr, redisClient != nil)
	gradebookSvc := service.NewGradebookService(service.GradebookDeps{
		Assignments: assignmentRepo,
		Students:    studentRepo,
		Deactivator: studentRepo,
		Grades:      gradeRepo,
		Tags:        tagRepo,
		Mappings:    mappingRepo,
		Store:       store,
		Scheduler:   flusher,
		Calendar:    calendar,
	}, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, calendar, validate, logr, flusher, store)
	mappingSvc := service.NewMappingService(platformClient, studentRepo, mappingRepo, cacheRepo, cacheSvc, service.MappingConfig{
		Threshold: cfg.Mapping.Threshold,
		CacheTTL:  cfg.Mapping.CacheTTL,
		LockTTL:   cfg.Mapping.LockTTL,
	}, validate, logr)
	syncSvc := service.NewSyncService(service.SyncDeps{
		Assignments: assignmentRepo,
		Students:    studentRepo,
		Mappings:    mappingRepo,
		Grades:      gradebookSvc,
		Platform:    platformClient,
		Metrics:     metrics,
	}, service.SyncConfig{Concurrency: cfg.Sync.Concurrency}, validate, logr)
	exportSvc := service.NewExportService(gradebookSvc, logr, nil, nil)

	syncQueue := jobs.NewQueue(service.SyncJobType, syncSvc.HandleSyncJob, jobs.QueueConfig{
		Workers:    cfg.Sync.Workers,
		BufferSize: cfg.Sync.QueueSize,
		MaxRetries: cfg.Sync.MaxRetries,
		RetryDelay: cfg.Sync.RetryDelay,
		Logger:     logr.Named("sync-queue"),
		OnResult:   syncSvc.OnJobResult,
	})
	syncQueue.Start(ctx)
	syncSvc.UseQueue(syncQueue)

	engine := router.New(router.Options{
		Env:            cfg.Env,
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Verifier:       middleware.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer),
		Metrics:        metrics,
		Logger:         logr,
	}, router.Handlers{
		Assignments: handler.NewAssignmentHandler(assignmentSvc),
		Gradebook:   handler.NewGradebookHandler(gradebookSvc),
		Mappings:    handler.NewMappingHandler(mappingSvc),
		Sync:        handler.NewSyncHandler(syncSvc),
		Export:      handler.NewExportHandler(exportSvc),
		Metrics: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": handler.PingFunc(db.PingContext),
			"redis":    cacheRepo,
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
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
		logr.Warn("http shutdown", zap.Error(err))
	}
	syncQueue.Stop()
	if _, err := flusher.FlushAll(shutdownCtx); err != nil {
		logr.Error("final grade flush failed", zap.Error(err))
	}
	flusher.Close()
}
