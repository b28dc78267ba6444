// middleware/auth.go

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/calltoleap/gatekeeper/logging"
)

// AdminAuth gates the admin API behind a shared bearer token.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			logger.Error("Admin API called but no admin token is configured")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin API disabled"})
			c.Abort()
			return
		}

		auth := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			logger.Warn("Rejected admin request", zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Next()
	}
}
