package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatdesk/internal/shared/logger"
	"chatdesk/internal/shared/utils"
)

// Limiter reports whether one more request for key fits its budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	limiter Limiter
	logger  logger.Interface
}

// NewRateLimiter creates the middleware around limiter.
func NewRateLimiter(limiter Limiter, logger logger.Interface) *RateLimiter {
	return &RateLimiter{limiter: limiter, logger: logger}
}

// Limit fails open when the limiter backend is unavailable.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.limiter == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		allowed, err := rl.limiter.Allow(c.Request.Context(), "ip:"+ip)
		if err != nil {
			rl.logger.Warnw("rate limit check failed, allowing request", "ip", ip, "error", err)
			c.Next()
			return
		}

		if !allowed {
			rl.logger.Warnw("rate limit exceeded", "ip", ip, "path", c.Request.URL.Path)
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
