package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/zgsm-ai/chat-proxy/internal/bootstrap"
)

func RegisterHandlers(router *gin.Engine, serverCtx *bootstrap.ServiceContext) {
	router.Use(RequestIDMiddleware(), CORSMiddleware(), RouteMetricsMiddleware(serverCtx.MetricsService))

	router.GET("/", HealthHandler())
	router.GET("/metrics", MetricsHandler(serverCtx))

	limiter := NewIPRateLimiter(serverCtx.Config().Server.RateLimitPerMinute)
	apiGroup := router.Group("/", RateLimitMiddleware(limiter), AuthMiddleware(serverCtx.Auth))
	{
		apiGroup.POST("/v1/chat/completions", ChatCompletionHandler(serverCtx))
		apiGroup.GET("/v1/chat/requests/:requestId/status", ChatStatusHandler(serverCtx))
		apiGroup.POST("/report-messages", ReportMessagesHandler())
	}
}
