package handler

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zgsm-ai/chat-proxy/internal/auth"
	"github.com/zgsm-ai/chat-proxy/internal/logger"
	"github.com/zgsm-ai/chat-proxy/internal/service"
	"github.com/zgsm-ai/chat-proxy/internal/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ctxKeyRequestID = "requestID"
	ctxKeyPrincipal = "principal"

	limiterIdleTTL = 10 * time.Minute
)

// RequestIDMiddleware reuses the caller's x-request-id or mints one, and
// attaches it to the request context for logging
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(types.HeaderRequestId)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, requestID)
		c.Header(types.HeaderRequestId, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Cache-Control, X-App-Version, x-api-key, x-request-id")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RouteMetricsMiddleware counts every matched route by outcome
func RouteMetricsMiddleware(metrics service.MetricsInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" || metrics == nil {
			return
		}
		metrics.RecordRoute(route, c.Writer.Status() < http.StatusBadRequest)
	}
}

// AuthMiddleware rejects requests without a valid API key and counts usage
// for accepted ones
func AuthMiddleware(validator *auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		principal, err := validator.Validate(ctx, auth.CredentialFromHeaders(c.Request.Header))
		if err != nil {
			if !errors.Is(err, auth.ErrMissingCredentials) && !errors.Is(err, auth.ErrInvalidCredentials) {
				logger.ErrorC(ctx, "api key validation failed", zap.Error(err))
			}
			sendErrorResponse(c, types.NewUnauthorizedError(unauthorizedMessage(err)))
			return
		}
		validator.RecordUsage(ctx, principal)
		c.Set(ctxKeyPrincipal, principal)
		c.Next()
	}
}

func unauthorizedMessage(err error) string {
	if errors.Is(err, auth.ErrMissingCredentials) {
		return auth.ErrMissingCredentials.Error()
	}
	return auth.ErrInvalidCredentials.Error()
}

// IPRateLimiter hands out one token bucket per client IP
type IPRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter allows perMinute requests per IP. A non-positive value
// disables limiting.
func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	l := &IPRateLimiter{
		limit:    rate.Inf,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
		l.burst = perMinute
	}
	return l
}

// Allow reports whether ip may make a request now
func (l *IPRateLimiter) Allow(ip string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		l.sweep(now)
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// sweep drops idle visitors. Callers hold l.mu.
func (l *IPRateLimiter) sweep(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(l.visitors, ip)
		}
	}
}

func RateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			logger.WarnC(c.Request.Context(), "rate limit exceeded", zap.String("clientIP", c.ClientIP()))
			sendErrorResponse(c, types.NewRateLimitError())
			return
		}
		c.Next()
	}
}
