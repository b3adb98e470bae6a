package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zgsm-ai/chat-proxy/internal/bootstrap"
)

// MetricsHandler serves the service's own prometheus registry
func MetricsHandler(serverCtx *bootstrap.ServiceContext) gin.HandlerFunc {
	registry := serverCtx.MetricsService.GetRegistry()
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Server is running"})
	}
}
