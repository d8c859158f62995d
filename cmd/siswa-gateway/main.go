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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/siswa-gateway/api/swagger"
	"github.com/noah-isme/siswa-gateway/internal/handler"
	"github.com/noah-isme/siswa-gateway/internal/repository"
	"github.com/noah-isme/siswa-gateway/internal/service"
	"github.com/noah-isme/siswa-gateway/pkg/backend"
	"github.com/noah-isme/siswa-gateway/pkg/cache"
	"github.com/noah-isme/siswa-gateway/pkg/config"
	"github.com/noah-isme/siswa-gateway/pkg/database"
	"github.com/noah-isme/siswa-gateway/pkg/export"
	"github.com/noah-isme/siswa-gateway/pkg/jobs"
	"github.com/noah-isme/siswa-gateway/pkg/logger"
)

// @title Siswa Gateway API
// @version 1.0.0
// @description Listing, selection and bulk actions for student records
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	metrics := service.NewMetricsService()
	validate := validator.New()
	checks := map[string]handler.ReadinessCheck{}

	var redisClient *redis.Client
	if cfg.Views.Store == config.ViewStoreRedis || cfg.References.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("redis unavailable", zap.Error(err))
		}
		defer redisClient.Close() //nolint:errcheck
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var views repository.ViewRepository
	if cfg.Views.Store == config.ViewStoreRedis {
		views = repository.NewRedisViewRepository(redisClient, cfg.Views.TTL)
	} else {
		views = repository.NewMemoryViewRepository(cfg.Views.TTL)
	}

	client := backend.New(backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		IDsTimeout: cfg.Backend.IDsTimeout,
		Logger:     logr.Named("backend"),
		Observer:   metrics,
	})

	viewSvc := service.NewViewService(views, client, validate, logr.Named("views"), service.ViewConfig{
		DefaultPageSize: cfg.Views.DefaultPageSize,
		MaxPageSize:     cfg.Views.MaxPageSize,
		ActionTimeout:   cfg.Views.ActionTimeout,
	})

	var (
		auditSvc  *service.AuditService
		auditRec  service.AuditRecorder
		history   handler.AuditHistory
		auditDB   *sqlx.DB
		auditJobs *jobs.Queue
	)
	if cfg.Audit.Enabled {
		auditDB, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("audit database unavailable", zap.Error(err))
		}
		defer auditDB.Close() //nolint:errcheck
		auditRepo := repository.NewAuditRepository(auditDB)
		checks["postgres"] = auditRepo.Ping

		auditSvc = service.NewAuditService(auditRepo, metrics, logr.Named("audit"))
		auditJobs = jobs.NewQueue("audit", auditSvc.Handle, jobs.QueueConfig{
			Workers:    cfg.Audit.Workers,
			MaxRetries: cfg.Audit.MaxRetries,
			Logger:     logr.Named("jobs"),
		})
		auditJobs.Start(context.Background())
		auditSvc.UseQueue(auditJobs)
		auditRec = auditSvc
		history = auditSvc
	}

	cacheRepo := repository.NewCacheRepository(redisClient, logr.Named("cache"))
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.References.CacheTTL, logr.Named("cache"), cfg.References.CacheEnabled && redisClient != nil)

	bulkSvc := service.NewBulkService(viewSvc, client, auditRec, metrics, logr.Named("bulk"))
	exportSvc := service.NewExportService(viewSvc, client, nil, metrics, logr.Named("export"), service.ExportConfig{
		DefaultFormat: exportFormat(cfg.Export.DefaultFormat, logr),
		SheetName:     cfg.Export.SheetName,
	})
	siswaSvc := service.NewSiswaService(client, cacheSvc, validate, logr.Named("siswa"))

	r := newRouter(cfg, logr, routeDeps{
		metrics:  metrics,
		tokens:   service.NewTokenService(cfg.JWT.Secret),
		views:    handler.NewViewHandler(viewSvc),
		actions:  handler.NewActionHandler(bulkSvc, exportSvc, viewSvc, history, logr.Named("actions")),
		siswa:    handler.NewSiswaHandler(siswaSvc),
		observer: handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "view_store", cfg.Views.Store, "audit", cfg.Audit.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if auditJobs != nil {
		auditJobs.Stop()
	}
}

func exportFormat(raw string, logr *zap.Logger) export.Format {
	format, err := export.ParseFormat(raw)
	if err != nil {
		logr.Warn("invalid EXPORT_DEFAULT_FORMAT, using xlsx", zap.String("value", raw))
		return export.FormatXLSX
	}
	return format
}
