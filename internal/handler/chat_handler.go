package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zgsm-ai/chat-proxy/internal/auth"
	"github.com/zgsm-ai/chat-proxy/internal/bootstrap"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/logic"
	"github.com/zgsm-ai/chat-proxy/internal/model"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"go.uber.org/zap"
)

// ChatCompletionHandler handles chat completion requests. Every accepted
// request is answered as an SSE stream, whatever the client's stream flag.
func ChatCompletionHandler(svcCtx *bootstrap.ServiceContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			sendErrorResponse(c, types.NewBadRequestError("failed to read request body"))
			return
		}

		var req types.ChatCompletionRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			sendErrorResponse(c, types.NewBadRequestError("invalid request body: "+err.Error()))
			return
		}

		l := logic.NewChatCompletionLogic(c.Request.Context(), svcCtx, &logic.RequestContext{
			Request:  &req,
			RawBody:  raw,
			Headers:  c.Request.Header,
			Identity: identityFromContext(c),
			Writer:   c.Writer,
		})

		logic.SetSSEResponseHeaders(c.Writer)
		c.Status(http.StatusOK)
		c.Writer.Flush()

		// failures were already reported in-stream
		if err := l.ChatCompletionStream(); err != nil {
			logger.WarnC(c.Request.Context(), "chat completion ended with error", zap.Error(err))
		}
	}
}

// identityFromContext assembles the caller identity set by the middleware chain
func identityFromContext(c *gin.Context) model.Identity {
	identity := model.Identity{
		RequestID:  c.GetString(ctxKeyRequestID),
		ClientIP:   c.ClientIP(),
		AppVersion: c.GetHeader(types.HeaderAppVersion),
	}
	if v, ok := c.Get(ctxKeyPrincipal); ok {
		if p, ok := v.(*auth.Principal); ok {
			identity.KeyName = p.KeyName
			identity.UserName = p.UserName
		}
	}
	return identity
}

// sendErrorResponse sends a structured error response
func sendErrorResponse(c *gin.Context, apiErr *types.APIError) {
	c.AbortWithStatusJSON(apiErr.StatusCode, gin.H{"error": apiErr})
}
