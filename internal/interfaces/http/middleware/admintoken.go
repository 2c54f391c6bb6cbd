package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chatdesk/internal/shared/logger"
	"chatdesk/internal/shared/utils"
)

// AdminTokenMiddleware guards the admin API with a static bearer token.
type AdminTokenMiddleware struct {
	token  string
	logger logger.Interface
}

// NewAdminTokenMiddleware creates the bearer token check for admin routes.
func NewAdminTokenMiddleware(token string, logger logger.Interface) *AdminTokenMiddleware {
	return &AdminTokenMiddleware{token: token, logger: logger}
}

func (m *AdminTokenMiddleware) RequireAdminToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.token == "" {
			utils.ErrorResponse(c, http.StatusServiceUnavailable, "admin API is disabled")
			c.Abort()
			return
		}

		var token string
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
		if token == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "missing authorization token")
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) != 1 {
			m.logger.Warnw("admin token rejected", "ip", c.ClientIP(), "path", c.Request.URL.Path)
			utils.ErrorResponse(c, http.StatusUnauthorized, "invalid authorization token")
			c.Abort()
			return
		}
		c.Next()
	}
}
