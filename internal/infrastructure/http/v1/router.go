// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"storeflow/internal/domain/movement"
	"storeflow/internal/infrastructure/http/v1/handlers"
	"storeflow/internal/infrastructure/http/v1/middleware"
	"storeflow/internal/infrastructure/metrics"
	"storeflow/internal/infrastructure/storage/postgres"
	"storeflow/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator

	Movements  handlers.MovementService
	References handlers.ReferenceReader
	Balances   handlers.BalanceReader

	// DB backs the readiness probe.
	DB handlers.Pinger

	// Idempotency enables Idempotency-Key handling when set.
	Idempotency *postgres.IdempotencyStore

	// Metrics enables request metrics and GET /metrics when set.
	Metrics *metrics.Metrics

	Version     string
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters: errors are rendered around recovery)
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerPhysicalInventoryRoutes(v1.Group("/physical-inventories"),
		handlers.NewMovementHandler(base, cfg.Movements, movement.KindPhysicalInventory))
	registerStoreRequestRoutes(v1.Group("/store-requests"),
		handlers.NewMovementHandler(base, cfg.Movements, movement.KindStoreRequestIssue))
	registerReferenceRoutes(v1, handlers.NewReferenceHandler(base, cfg.References, cfg.Balances))

	return router
}

// registerMovementRoutes registers the routes shared by both kinds.
func registerMovementRoutes(rg *gin.RouterGroup, h *handlers.MovementHandler) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.GET("/:id/history", h.History)
	rg.GET("/:id/history/:seq", h.Snapshot)

	rg.POST("/:id/submit", h.Submit)
	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/reject", h.Reject)
}

func registerPhysicalInventoryRoutes(rg *gin.RouterGroup, h *handlers.MovementHandler) {
	registerMovementRoutes(rg, h)
	rg.POST("/:id/return", h.ReturnForCorrection)
	rg.POST("/:id/accept-variance", h.AcceptVariance)
}

func registerStoreRequestRoutes(rg *gin.RouterGroup, h *handlers.MovementHandler) {
	registerMovementRoutes(rg, h)
	rg.POST("/:id/fulfill", h.Fulfill)
	rg.POST("/:id/receive", h.Receive)
	rg.POST("/:id/cancel", h.Cancel)
}

func registerReferenceRoutes(rg *gin.RouterGroup, h *handlers.ReferenceHandler) {
	rg.GET("/stores", h.MyStores)
	rg.GET("/stores/:id/stock", h.StoreStock)
	rg.GET("/products", h.Products)
}
