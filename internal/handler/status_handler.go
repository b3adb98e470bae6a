package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zgsm-ai/chat-proxy/internal/bootstrap"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"go.uber.org/zap"
)

// ChatStatusHandler handles tool status query requests
func ChatStatusHandler(svcCtx *bootstrap.ServiceContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("requestId")
		if requestID == "" {
			c.JSON(http.StatusBadRequest, types.ToolStatusResponse{
				Code:    http.StatusBadRequest,
				Message: "requestId is required",
			})
			return
		}

		statuses, err := svcCtx.RedisClient.GetHash(c.Request.Context(), requestID)
		if err != nil {
			logger.WarnC(c.Request.Context(), "tool status not available",
				zap.String("statusRequestID", requestID),
				zap.Error(err),
			)
			c.JSON(http.StatusNotFound, types.ToolStatusResponse{
				Code:    http.StatusNotFound,
				Message: "request-id not found",
			})
			return
		}

		tools := make(map[string]types.ToolStatusDetail, len(statuses))
		for name, status := range statuses {
			tools[name] = types.ToolStatusDetail{Status: status}
		}
		c.JSON(http.StatusOK, types.ToolStatusResponse{
			Code:    http.StatusOK,
			Data:    types.ToolStatusData{Tools: tools},
			Message: "success",
		})
	}
}
