package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-media/gallery/internal/auth"
	"github.com/aura-media/gallery/pkg/response"
)

// RequireSession validates the bearer token and checks that its session is still live.
func RequireSession(jwtService *auth.JWTService, sessions auth.SessionStore, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		live, err := sessions.Exists(c.Request.Context(), claims.SessionID())
		if err != nil {
			logger.Error("session lookup failed", zap.Error(err))
			response.ServiceUnavailable(c, "session store unavailable")
			c.Abort()
			return
		}
		if !live {
			response.Unauthorized(c, "session revoked")
			c.Abort()
			return
		}
		c.Set(auth.ContextSessionID, claims.SessionID())
		c.Next()
	}
}
