// router/router.go

package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/calltoleap/gatekeeper/controller"
	"github.com/calltoleap/gatekeeper/middleware"
)

// SetupRouter assembles the admin API. The redis rate limiter is only
// attached when redis is configured; the bearer-token auth always is.
func SetupRouter(
	adminController *controller.AdminController,
	adminToken string,
	rateLimited bool,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(middleware.AdminAuth(adminToken))
	if rateLimited {
		api.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))
	}

	adminController.RegisterRoutes(api)

	return router
}
