package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/merch-batch-api/internal/handler"
	"github.com/noah-isme/merch-batch-api/internal/middleware"
	"github.com/noah-isme/merch-batch-api/internal/models"
	"github.com/noah-isme/merch-batch-api/internal/service"
	"github.com/noah-isme/merch-batch-api/pkg/config"
	"github.com/noah-isme/merch-batch-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/merch-batch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/merch-batch-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth         middleware.TokenValidator
	metrics      *service.MetricsService
	checks       map[string]handler.Pinger
	batches      *handler.BatchHandler
	records      *handler.RecordHandler
	barcodes     *handler.BarcodeHandler
	references   *handler.ReferenceHandler
	storeListing *handler.StoreListingHandler
	files        *handler.FileHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	ops := handler.NewMetricsHandler(deps.metrics, deps.checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	// Image links are authorised by their signed token.
	api.GET("/files", deps.files.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))
	read := middleware.RequireRoles(models.RoleAdmin, models.RoleMerchandiser, models.RoleViewer)
	write := middleware.RequireRoles(models.RoleAdmin, models.RoleMerchandiser)

	batches := secured.Group("/batches")
	batches.GET("", read, deps.batches.List)
	batches.POST("", write, deps.batches.Create)
	batches.GET("/:batch_number", read, deps.batches.Get)
	batches.POST("/:batch_number/post", write, deps.batches.Post)
	batches.GET("/:batch_number/export", read, deps.batches.Export)
	batches.GET("/:batch_number/history", read, deps.batches.History)

	batches.GET("/:batch_number/records", read, deps.records.List)
	batches.POST("/:batch_number/records", write, deps.records.Create)
	batches.POST("/:batch_number/records/validate", read, deps.records.Validate)
	batches.GET("/:batch_number/records/:id", read, deps.records.Get)
	batches.PUT("/:batch_number/records/:id", write, deps.records.Update)
	batches.DELETE("/:batch_number/records/:id", write, deps.records.Delete)

	barcodes := secured.Group("/barcodes", read)
	barcodes.GET("/:barcode", deps.barcodes.Details)
	barcodes.GET("/:barcode/used", deps.barcodes.CheckUsed)

	references := secured.Group("/references", read)
	references.GET("/uom", deps.references.UOMs)
	references.GET("/selling-uom", deps.references.SellingUOMs)
	references.GET("/departments", deps.references.Departments)
	references.GET("/departments/:dept/sub-departments", deps.references.SubDepartments)
	references.GET("/stores", deps.references.Stores)
	secured.POST("/derived-fields", read, deps.references.Derive)

	secured.GET("/store-listing/template", read, deps.storeListing.Template)
	secured.POST("/store-listing/parse", read, deps.storeListing.Parse)
	secured.POST("/stores/validate", read, deps.storeListing.ValidateStores)

	return r
}
