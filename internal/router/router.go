package router

import (
	"time"

	"nextops/internal/config"
	"nextops/internal/handler"
	"nextops/internal/infra"
	"nextops/internal/middleware"
	"nextops/internal/repository"
	"nextops/internal/service"
	"nextops/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, erpCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	otRepo := repository.NewOTRepository(db)
	facturaRepo := repository.NewFacturaRepository(db)
	disputaRepo := repository.NewDisputaRepository(db)
	notaRepo := repository.NewNotaCreditoRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	importSvc := service.NewImportService(otRepo)
	disputaSvc := service.NewDisputaService(disputaRepo, facturaRepo, notaRepo, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	importH := handler.NewImportacionesHandler(importSvc, cfg.MaxUploadMB)
	disputasH := handler.NewDisputasHandler(disputaSvc, cfg.AdjuntosPath, cfg.MaxUploadMB)
	otsH := handler.NewOTsHandler(otRepo)

	// ── Routes ───────────────────────────────────────────────────────────────

	r.GET("/health", handler.Health(db, rdb, erpCB))

	v1 := r.Group("/v1")
	{
		imp := v1.Group("/importaciones", middleware.ImportRateLimiter())
		{
			imp.POST("", importH.Importar)
			imp.POST("/resolver", importH.Resolver)
		}

		v1.GET("/ots", otsH.Listar)
		v1.GET("/ots/:id", otsH.Obtener)

		v1.POST("/facturas/:id/disputa", disputasH.Crear)

		disputas := v1.Group("/disputas")
		{
			disputas.GET("", disputasH.Listar)
			disputas.GET("/:id", disputasH.Obtener)
			disputas.POST("/:id/resolver", disputasH.Resolver)
			disputas.POST("/:id/comentarios", disputasH.Comentar)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
