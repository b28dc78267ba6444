// util/http_util.go

package util

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/calltoleap/gatekeeper/logging"
)

// RespondWithError sends a JSON error response and logs the underlying
// error.
func RespondWithError(c *gin.Context, status int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.Int("status", status),
		zap.String("path", c.Request.URL.Path))
	c.JSON(status, gin.H{"error": message})
}
