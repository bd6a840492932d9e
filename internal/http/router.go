package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.ngs.io/storage-anomaly/internal/usecase"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(anomalyUC *usecase.AnomalyUseCase, groundwaterUC *usecase.GroundwaterUseCase, allowedOrigins []string, clock clockwork.Clock) *gin.Engine {
	router := gin.Default()

	// Allow all origins unless a list is configured.
	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	handler := NewHandler(anomalyUC, groundwaterUC, clock)

	v1 := router.Group("/v1")
	v1.GET("/sources", handler.GetSources)
	v1.POST("/anomalies", handler.PostAnomalies)
	v1.POST("/groundwater", handler.PostGroundwater)
	v1.POST("/regions/cells", handler.PostRegionCells)

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
