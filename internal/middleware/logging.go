package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pymthouse/gateway/internal/logging"
	"github.com/pymthouse/gateway/internal/metrics"
)

// RequestLogger middleware logs request details and records HTTP metrics
func RequestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		logger.LogHTTPRequest(c.Request.Method, path, c.ClientIP(), status, duration)
		metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), strconv.Itoa(status), duration.Seconds())
	}
}
