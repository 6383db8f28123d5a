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
	"go.uber.org/zap"

	_ "github.com/noah-isme/exam-results-api/api/swagger"
	"github.com/noah-isme/exam-results-api/internal/handler"
	"github.com/noah-isme/exam-results-api/internal/repository"
	"github.com/noah-isme/exam-results-api/internal/service"
	"github.com/noah-isme/exam-results-api/pkg/cache"
	"github.com/noah-isme/exam-results-api/pkg/config"
	"github.com/noah-isme/exam-results-api/pkg/database"
	"github.com/noah-isme/exam-results-api/pkg/jobs"
	"github.com/noah-isme/exam-results-api/pkg/logger"
	"github.com/noah-isme/exam-results-api/pkg/storage"
)

// @title Exam Results API
// @version 1.0.0
// @description Processes national examination marks into graded results, rankings and location summaries.
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	checks := []handler.ReadinessCheck{{Name: "postgres", Check: db.PingContext}}
	var cacheRepo service.CacheRepository
	if cfg.Analytics.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client, logr)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
			checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}})
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cacheRepo != nil)

	examRepo := repository.NewExamRepository(db)
	markRepo := repository.NewMarkRepository(db)
	runRepo := repository.NewProcessingRunRepository(db)
	resultRepo := repository.NewResultRepository(db)

	worker := service.NewProcessingWorker(examRepo, markRepo, runRepo, resultRepo, cacheSvc, metrics, cfg.Processing.Workers, logr)
	queue := jobs.NewQueue("results", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Processing.QueueWorkers,
		MaxRetries:  cfg.Processing.QueueRetries,
		RetryDelay:  5 * time.Second,
		OnExhausted: worker.OnExhausted,
		Logger:      logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	validate := validator.New()
	resultsSvc := service.NewResultsService(examRepo, runRepo, resultRepo, queue, cacheSvc, logr, service.ResultsServiceConfig{
		IncludeAbsent: cfg.Processing.IncludeAbsent,
	})
	resultsSvc.RecoverPendingJobs(ctx)

	analyticsSvc := service.NewAnalyticsService(examRepo, resultRepo, markRepo, cacheSvc, metrics, validate, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})

	handlers := routeHandlers{
		results:   handler.NewResultsHandler(resultsSvc),
		analytics: handler.NewAnalyticsHandler(analyticsSvc),
		metrics:   handler.NewMetricsHandler(metrics, checks...),
		audit:     repository.NewAuditRepository(db),
	}

	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(analyticsSvc, store, signer, validate, logr, service.ExportConfig{
			APIPrefix:       cfg.APIPrefix,
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
		})
		exportSvc.StartCleanup(ctx)
		handlers.exports = handler.NewExportHandler(exportSvc)
	}

	router := newRouter(cfg, logr, metrics, authSvc, handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
