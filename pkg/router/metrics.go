package router

import (
	"strconv"

	"companion-saas/backend/pkg/di"

	"github.com/gin-gonic/gin"
)

// metricsMiddleware counts requests by matched route template
func metricsMiddleware(container *di.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		container.Metrics.HTTPRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Inc()
	}
}
