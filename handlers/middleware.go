package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"factorylens/logger"
)

// RequestLogger logs every request through the structured logger
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			log.Warn("Request completed with errors", append(fields, "errors", c.Errors.String())...)
			return
		}
		log.Debug("Request completed", fields...)
	}
}
