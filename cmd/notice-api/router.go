package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/handler"
	"github.com/JGooseK41/NFTServiceApp-sub011/internal/middleware"
	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	"github.com/JGooseK41/NFTServiceApp-sub011/internal/service"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/config"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/logger"
	corsmiddleware "github.com/JGooseK41/NFTServiceApp-sub011/pkg/middleware/cors"
	reqidmiddleware "github.com/JGooseK41/NFTServiceApp-sub011/pkg/middleware/requestid"
)

type routerDeps struct {
	db        *sqlx.DB
	metrics   *service.MetricsService
	notices   *service.NoticeService
	documents *service.DocumentService
	access    *service.AccessService
	reconcile *service.ReconcileService
	energy    *service.EnergyService
	auth      *service.AuthService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	noticeHandler := handler.NewNoticeHandler(deps.notices, deps.documents, deps.access)
	recipientHandler := handler.NewRecipientHandler(deps.notices, deps.access)
	documentHandler := handler.NewDocumentHandler(deps.documents)
	energyHandler := handler.NewEnergyHandler(deps.energy)
	adminHandler := handler.NewAdminHandler(deps.auth, deps.reconcile, deps.documents, deps.metrics)

	api := r.Group(cfg.APIPrefix)

	notices := api.Group("/notices", middleware.ServerAddress())
	notices.POST("", noticeHandler.Create)
	notices.GET("/recent", noticeHandler.Recent)
	notices.GET("/all-served", noticeHandler.AllServed)
	notices.GET("/all-served/export", noticeHandler.Export)
	notices.POST("/dismiss", noticeHandler.Dismiss)
	notices.POST("/restore", noticeHandler.Restore)
	notices.GET("/:noticeId", noticeHandler.Get)
	notices.GET("/:noticeId/images", noticeHandler.Images)
	notices.POST("/:noticeId/images", noticeHandler.UploadImages)
	notices.GET("/:noticeId/transaction", noticeHandler.Transaction)
	notices.GET("/:noticeId/receipt", noticeHandler.Receipt)
	notices.GET("/:noticeId/access-attempts", noticeHandler.AccessAttempts)

	recipient := api.Group("/recipient/:address")
	recipient.GET("/notices", recipientHandler.Notices)
	recipient.GET("/notice/:alertId/document", recipientHandler.Document)
	recipient.POST("/notice/:alertId/accept", recipientHandler.Accept)

	api.POST("/v2/documents/upload-to-disk", documentHandler.UploadToDisk)
	api.GET("/v2/documents/serve/:filename", documentHandler.Serve)
	api.POST("/pdf-simple/upload", documentHandler.SimpleUpload)
	api.GET("/pdf-simple/retrieve/:fileId", documentHandler.SimpleRetrieve)
	api.GET("/documents/:blobId", documentHandler.Get)

	energy := api.Group("/energy")
	energy.POST("/createOrder", energyHandler.CreateOrder)
	energy.POST("/checkOrder", energyHandler.CheckOrder)
	energy.POST("/checkAddress", energyHandler.CheckAddress)

	api.POST("/admin/login", adminHandler.Login)
	admin := api.Group("/admin", middleware.JWT(deps.auth), middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/reconcile", middleware.Audit(logr, "reconcile"), adminHandler.Reconcile)
	admin.GET("/discrepancies", adminHandler.Discrepancies)
	admin.POST("/discrepancies/:id/resolve", middleware.Audit(logr, "resolve_discrepancy"), adminHandler.Resolve)
	admin.POST("/orphans/sweep", middleware.Audit(logr, "sweep_orphans"), adminHandler.SweepOrphans)
	admin.GET("/stats", adminHandler.Stats)

	return r
}
