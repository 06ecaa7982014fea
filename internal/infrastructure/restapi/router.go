package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the portfolio handler into the /api/v1 group.
func RegisterRoutes(router *gin.Engine, handler *PortfolioHandler) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/addresses/:address/balances", handler.ScanAddressHandler)
		v1.POST("/portfolio", handler.BulkScanHandler)
		v1.POST("/prices", handler.GetPricesHandler)
		v1.GET("/networks", handler.ListNetworksHandler)
		v1.POST("/networks", handler.RegisterNetworkHandler)
		v1.GET("/cache/stats", handler.CacheStatsHandler)
		v1.DELETE("/cache", handler.ClearCacheHandler)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
