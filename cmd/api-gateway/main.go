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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/merch-batch-api/api/swagger"
	"github.com/noah-isme/merch-batch-api/internal/handler"
	"github.com/noah-isme/merch-batch-api/internal/repository"
	"github.com/noah-isme/merch-batch-api/internal/schema"
	"github.com/noah-isme/merch-batch-api/internal/service"
	"github.com/noah-isme/merch-batch-api/pkg/cache"
	"github.com/noah-isme/merch-batch-api/pkg/config"
	"github.com/noah-isme/merch-batch-api/pkg/database"
	"github.com/noah-isme/merch-batch-api/pkg/events"
	"github.com/noah-isme/merch-batch-api/pkg/imageproc"
	"github.com/noah-isme/merch-batch-api/pkg/jobs"
	"github.com/noah-isme/merch-batch-api/pkg/logger"
	"github.com/noah-isme/merch-batch-api/pkg/storage"
)

// @title Merchandising Batch API
// @version 1.0.0
// @description Stages item master changes in batches and posts them downstream.
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	checks := map[string]handler.Pinger{"postgres": db}

	var referenceRepo *repository.ReferenceRepository
	if cfg.ItemMaster.Enabled {
		itemMaster, err := database.NewItemMaster(cfg.ItemMaster)
		if err != nil {
			logr.Fatal("failed to connect item master", zap.Error(err))
		}
		defer itemMaster.Close()
		referenceRepo = repository.NewReferenceRepository(itemMaster)
		checks["item_master"] = itemMaster
	} else {
		logr.Warn("item master disabled, barcode lookups and reference lists are empty")
	}

	metricsSvc := service.NewMetricsService()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching and locks disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}
	var cacheRepo service.CacheRepository
	var locker service.Locker
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		locker = cache.NewLocker(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.RecordsTTL, logr, redisClient != nil)

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logr.Fatal("failed to init storage", zap.Error(err))
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.PubSub.Enabled {
		pubsub, err := events.NewPubSubPublisher(ctx, cfg.PubSub, logr)
		if err != nil {
			logr.Fatal("failed to init pubsub publisher", zap.Error(err))
		}
		defer pubsub.Close()
		publisher = pubsub
	}

	registry := schema.NewRegistry(validator.New())
	batchRepo := repository.NewBatchRepository(db)
	recordRepo := repository.NewBatchRecordRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	auditSvc := service.NewAuditService(auditRepo, logr)

	var referenceSvc *service.ReferenceService
	var barcodeSvc *service.BarcodeService
	if referenceRepo != nil {
		referenceSvc = service.NewReferenceService(referenceRepo, cacheSvc, cfg.Cache.ReferenceTTL, logr)
		barcodeSvc = service.NewBarcodeService(referenceRepo, batchRepo, recordRepo, registry, metricsSvc, logr)
	} else {
		referenceSvc = service.NewReferenceService(nil, cacheSvc, cfg.Cache.ReferenceTTL, logr)
		barcodeSvc = service.NewBarcodeService(nil, batchRepo, recordRepo, registry, metricsSvc, logr)
	}

	recordSvc := service.NewBatchRecordService(recordRepo, batchRepo, barcodeSvc, referenceSvc, registry, logr,
		service.WithRecordImages(service.RecordImages{
			Store:          store,
			Policy:         imageproc.Policy{MaxBytes: cfg.Images.MaxFileSizeBytes, AllowedMIMEs: cfg.Images.AllowedMIMEs},
			ThumbnailWidth: cfg.Images.ThumbnailWidth,
			Signer:         storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Storage.SignedURLTTL),
			URLPrefix:      cfg.APIPrefix + "/files?token=",
		}),
		service.WithRecordCache(cacheSvc, cfg.Cache.RecordsTTL),
		service.WithRecordLocker(locker, cfg.Batches.LockTTL),
		service.WithRecordAudit(auditRepo),
		service.WithRecordMetrics(metricsSvc),
	)

	dispatchSvc := service.NewDispatchService(batchRepo, recordRepo, registry, store, publisher, cacheSvc, metricsSvc, logr)
	queue := jobs.NewQueue("batch-dispatch", dispatchSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Dispatch.Workers,
		MaxRetries: cfg.Dispatch.Retries,
		RetryDelay: cfg.Dispatch.RetryDelay,
		OnGiveUp:   dispatchSvc.GiveUp,
		Logger:     logr.Named("dispatch"),
	})
	dispatchSvc.Attach(queue)
	queue.Start(ctx)
	defer queue.Stop()
	if _, err := dispatchSvc.Resume(ctx); err != nil {
		logr.Error("failed to resume pending dispatches", zap.Error(err))
	}

	batchSvc := service.NewBatchService(batchRepo, recordSvc, registry, logr,
		service.WithBatchDispatcher(dispatchSvc),
		service.WithBatchLocker(locker, cfg.Batches.LockTTL),
		service.WithBatchCache(cacheSvc),
		service.WithBatchAudit(auditRepo),
		service.WithBatchMetrics(metricsSvc),
	)
	storeListingSvc := service.NewStoreListingService(referenceSvc, logr)

	r := newRouter(cfg, logr, routerDeps{
		auth:         authSvc,
		metrics:      metricsSvc,
		checks:       checks,
		batches:      handler.NewBatchHandler(batchSvc, auditSvc),
		records:      handler.NewRecordHandler(recordSvc),
		barcodes:     handler.NewBarcodeHandler(barcodeSvc),
		references:   handler.NewReferenceHandler(referenceSvc),
		storeListing: handler.NewStoreListingHandler(storeListingSvc),
		files:        handler.NewFileHandler(recordSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
