package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware validates bearer tokens against token, which comes from
// config.Config.APIAuthToken rather than reading the environment directly —
// everything else in this package already gets its tunables through cfg.
// If token is empty every request is allowed (dev mode); in GinMode
// "release" that is logged as a warning rather than silently permitted.
//
// Public endpoints (health, the websocket stream) are never wrapped with
// this middleware; see SetupRouter.
func AuthMiddleware(token, ginMode string, logger *zap.Logger) gin.HandlerFunc {
	if token == "" && ginMode == "release" {
		logger.Warn("API_AUTH_TOKEN is not set in release mode; all protected endpoints are publicly accessible")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
				"hint":  "Use: Authorization: Bearer <API_AUTH_TOKEN>",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid Authorization header format"})
			c.Abort()
			return
		}

		// Constant-time comparison to prevent timing-based token enumeration.
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
