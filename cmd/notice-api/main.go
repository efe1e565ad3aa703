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

	_ "github.com/JGooseK41/NFTServiceApp-sub011/api/swagger"
	"github.com/JGooseK41/NFTServiceApp-sub011/internal/repository"
	"github.com/JGooseK41/NFTServiceApp-sub011/internal/service"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/cache"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/config"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/database"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/energy"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/jobs"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/logger"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/storage"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/tron"
)

// @title Legal Notice API
// @version 1.0.0
// @description Records blockchain-served legal notices, stores their documents and gates recipient access.
// @BasePath /api
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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheSvc *service.CacheService
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Redis.CacheTTL, "notices", logr, true)
		}
	}

	chain, err := tron.Dial(ctx, tron.Options{
		RPCURL:          cfg.Tron.RPCURL,
		APIKey:          cfg.Tron.APIKey,
		ContractAddress: cfg.Tron.ContractAddress,
		CallTimeout:     cfg.Tron.CallTimeout,
		RetryMaxElapsed: cfg.Tron.RetryMaxElapsed,
		Logger:          logr,
	})
	if err != nil {
		logr.Fatal("failed to configure tron client", zap.Error(err))
	}
	defer chain.Close()

	files, err := storage.NewFallbackStorage(cfg.Storage.PrimaryDir, cfg.Storage.FallbackDir, logr)
	if err != nil {
		logr.Fatal("failed to prepare document storage", zap.Error(err))
	}
	var signer *storage.SignedURLSigner
	if cfg.Storage.SignedURLs {
		signer = storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	}

	noticeRepo := repository.NewNoticeRepository(db)
	blobRepo := repository.NewBlobRepository(db)
	accessRepo := repository.NewAccessRepository(db)
	discrepancyRepo := repository.NewDiscrepancyRepository(db)

	reconcileSvc := service.NewReconcileService(chain, noticeRepo, discrepancyRepo, metrics, service.ReconcileServiceConfig{
		Workers:           cfg.Reconcile.Workers,
		Interval:          cfg.Reconcile.Interval,
		BlockWindow:       cfg.Reconcile.BlockWindow,
		AssumeOddEvenPair: cfg.Reconcile.AssumeOddEvenPair,
		ServerWallet:      cfg.Tron.ServerWallet,
	}, logr)

	verifyQueue := jobs.NewQueue("verify-notice", reconcileSvc.VerifyJob, jobs.QueueConfig{
		Workers:    2,
		BufferSize: cfg.Reconcile.VerifyQueueSize,
		MaxRetries: cfg.Reconcile.VerifyRetries,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	verifyQueue.Start(ctx)
	defer verifyQueue.Stop()

	documentSvc := service.NewDocumentService(blobRepo, files, signer, metrics, service.DocumentServiceConfig{
		APIPrefix:          cfg.APIPrefix,
		InlineThumbnailMax: cfg.Storage.InlineThumbnailMax,
		MaxUploadBytes:     cfg.Storage.MaxUploadBytes,
		OrphanTTL:          cfg.Orphans.TTL,
		SweepInterval:      cfg.Orphans.SweepInterval,
	}, logr)

	noticeSvc := service.NewNoticeService(service.NoticeServiceParams{
		Repo:      noticeRepo,
		Blobs:     blobRepo,
		Links:     documentSvc,
		Access:    accessRepo,
		Chain:     chain,
		Verifier:  verifyQueue,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr,
		Config: service.NoticeServiceConfig{
			RecentLimit: cfg.Notices.RecentLimit,
			ChainName:   "TRON " + cfg.Tron.Network,
		},
	})

	accessSvc := service.NewAccessService(service.AccessServiceParams{
		Notices:     noticeRepo,
		Repo:        accessRepo,
		Acceptor:    noticeSvc,
		Blobs:       blobRepo,
		Links:       documentSvc,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
		IPFSGateway: cfg.IPFS.GatewayURL,
	})

	energySvc := service.NewEnergyService(energy.New(energy.Options{
		BaseURL: cfg.Energy.BaseURL,
		APIID:   cfg.Energy.APIID,
		APIKey:  cfg.Energy.APIKey,
		Timeout: cfg.Energy.Timeout,
		Logger:  logr,
	}), validate, cfg.Energy.Timeout, logr)

	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		Username:          cfg.Admin.Username,
		PasswordHash:      cfg.Admin.PasswordHash,
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})

	r := newRouter(cfg, logr, routerDeps{
		db:        db,
		metrics:   metrics,
		notices:   noticeSvc,
		documents: documentSvc,
		access:    accessSvc,
		reconcile: reconcileSvc,
		energy:    energySvc,
		auth:      authSvc,
	})

	documentSvc.StartOrphanSweep(ctx)
	if cfg.Reconcile.Enabled {
		reconcileSvc.Start(ctx)
	}

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
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
