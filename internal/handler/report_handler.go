package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"go.uber.org/zap"
)

type reportRequest struct {
	Message string `json:"message"`
}

// ReportMessagesHandler logs a message reported by the client
func ReportMessagesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.WarnC(c.Request.Context(), "invalid report", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "Invalid report"})
			return
		}
		logger.InfoC(c.Request.Context(), "reported message", zap.String("message", req.Message))
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}
