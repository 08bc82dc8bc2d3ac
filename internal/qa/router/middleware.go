package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/kart-io/logger"

	"github.com/kart-io/anchora/internal/pkg/httputils"
)

// RequestID assigns a ULID to every request, honoring an incoming
// X-Request-ID header so identifiers survive proxies. ulid.Make uses the
// package's locked entropy source, safe for concurrent handlers.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(httputils.RequestIDKey)
		if requestID == "" {
			requestID = ulid.Make().String()
		}
		c.Set(httputils.RequestIDKey, requestID)
		c.Header(httputils.RequestIDKey, requestID)
		c.Next()
	}
}

// AccessLog logs one line per request with latency and status.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"request_id", c.GetString(httputils.RequestIDKey),
			"client_ip", c.ClientIP(),
		)
	}
}

// Recovery converts panics into 500 responses instead of dropped
// connections.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("handler panic",
					"panic", r,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(httputils.RequestIDKey),
				)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
