package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/basketfolio/folio_service/internal/api/handlers"
	"github.com/basketfolio/folio_service/internal/api/middleware"
	"github.com/basketfolio/folio_service/internal/infrastructure/di"
)

// SetupRoutes builds the gin engine with all routes registered.
func SetupRoutes(container *di.Container) *gin.Engine {
	zapLog := container.Logger.Zap()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(zapLog))
	router.Use(middleware.Metrics())

	healthHandler := handlers.NewHealthHandler(container.DB)
	basketHandler := handlers.NewBasketHandler(container.BasketService, zapLog)
	perfHandler := handlers.NewPerformanceHandler(container.SnapshotManager, container.BasketService, zapLog)
	adminHandler := handlers.NewAdminHandler(container.SnapshotManager, container.Scheduler, zapLog)

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		baskets := v1.Group("/baskets")
		{
			baskets.POST("", basketHandler.CreateBasket)
			baskets.GET("", basketHandler.ListBaskets)
			baskets.GET("/:id", basketHandler.GetBasket)
			baskets.GET("/:id/performance", perfHandler.GetPerformance)
			baskets.GET("/:id/rolling", perfHandler.GetRollingSummary)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/baskets/:id/recompute", adminHandler.RecomputeBasket)
			admin.POST("/recompute", adminHandler.RecomputeAll)
			admin.GET("/scheduler/status", adminHandler.SchedulerStatus)
		}
	}

	return router
}
